package status

// ErrorMap is the single merchant-specific piece the core depends on: for
// each normalized kind, the merchant error strings/codes that mean it.
// Classification is a pure lookup.
type ErrorMap map[Kind][]string

// Classify maps a merchant error code to its normalized kind. Unmapped codes
// fall back to KindUnknown.
func (m ErrorMap) Classify(merchantCode string) Kind {
	for kind, codes := range m {
		for _, code := range codes {
			if code == merchantCode {
				return kind
			}
		}
	}
	return KindUnknown
}

// ClassifyError is Classify lifted to an *Error with the merchant code kept
// as detail for diagnostics.
func (m ErrorMap) ClassifyError(merchantCode string) *Error {
	return Errorf(m.Classify(merchantCode), "merchant error code %q", merchantCode)
}

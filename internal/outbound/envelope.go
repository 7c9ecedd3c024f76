package outbound

import (
	"crypto/sha256"
	"encoding/hex"

	"midas/internal/model"

	"github.com/google/uuid"
)

// Envelope identifies one logical operation against a merchant. It is
// computed once per operation and reused across every retry of it, so audit
// entries and callbacks stay correlatable.
type Envelope struct {
	// MessageID is unique per logical request.
	MessageID string
	// RecordID is the stable identifier of the owning account, derived
	// deterministically from the internal account id.
	RecordID string
	Journey  model.Journey
}

func NewEnvelope(accountID string, journey model.Journey) Envelope {
	return Envelope{
		MessageID: uuid.NewString(),
		RecordID:  RecordID(accountID),
		Journey:   journey,
	}
}

// RecordID derives the external record identifier for an internal account
// id. The derivation must stay stable: merchants hold on to these.
func RecordID(accountID string) string {
	digest := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(digest[:])[:20]
}

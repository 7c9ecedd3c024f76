// Package model holds the small shared vocabulary of the merchant
// integration core: journey types and integration service modes.
package model

import "fmt"

// Journey classifies the operation being driven against a merchant. It
// selects which error map and audit scoping applies.
type Journey int

const (
	JourneyJoin Journey = iota
	// JourneyLink covers validate/link flows (attaching an existing
	// merchant account).
	JourneyLink
	JourneyUpdate
)

func (j Journey) String() string {
	switch j {
	case JourneyJoin:
		return "JOIN"
	case JourneyLink:
		return "VALIDATE"
	case JourneyUpdate:
		return "UPDATE"
	}
	return fmt.Sprintf("Journey(%d)", int(j))
}

// ParseJourney accepts the wire names used by merchant configuration.
// "LINK" is accepted as an alias of "VALIDATE".
func ParseJourney(s string) (Journey, error) {
	switch s {
	case "JOIN":
		return JourneyJoin, nil
	case "VALIDATE", "LINK":
		return JourneyLink, nil
	case "UPDATE":
		return JourneyUpdate, nil
	}
	return 0, fmt.Errorf("unknown journey type: %q", s)
}

// Mode describes how a merchant completes an operation: inline with the
// final result (sync) or with an acceptance response followed by an
// out-of-band callback (async).
type Mode int

const (
	ModeSync Mode = iota
	ModeAsync
)

func (m Mode) String() string {
	if m == ModeAsync {
		return "ASYNC"
	}
	return "SYNC"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "SYNC":
		return ModeSync, nil
	case "ASYNC":
		return ModeAsync, nil
	}
	return 0, fmt.Errorf("unknown integration service mode: %q", s)
}

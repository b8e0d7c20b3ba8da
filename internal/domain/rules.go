package domain

import "time"

// RulesVersion is one immutable revision of the operational rules document.
// Activation flips a pointer row; old versions are never rewritten.
type RulesVersion struct {
	Version   int
	Document  []byte
	CreatedBy string
	CreatedAt time.Time
}

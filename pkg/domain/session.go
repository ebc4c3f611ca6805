package domain

import "time"

// SessionRecord is the persisted summary of one debugging session.
// Stores keep the latest record per session so sessions can be listed and inspected
// after the process that ran them has gone.
type SessionRecord struct {
	ID        string         `json:"id"`
	Program   string         `json:"program"`
	Status    Status         `json:"status"`
	State     *DebuggerState `json:"state,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Sealed holds the encrypted state when the store encrypts records.
	Sealed string `json:"sealed,omitempty"`
}

// NewSessionRecord creates a record for a freshly created session.
func NewSessionRecord(id, program string) *SessionRecord {
	return &SessionRecord{
		ID:        id,
		Program:   program,
		Status:    StatusStop,
		UpdatedAt: time.Now(),
	}
}

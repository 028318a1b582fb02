package model

import (
	"github.com/google/uuid"

	"github.com/phamhoa2416/ticket-booking/internal/apperr"
)

// Versioned adds optimistic-lock helpers to a persisted record. Embed it
// anonymously. Version starts at 0, is bumped exactly once per successful
// mutation and is never decremented or reset.
type Versioned struct {
	Version int64 `json:"version"`
}

// GetVersion returns the version captured when the record was read.
func (v *Versioned) GetVersion() int64 { return v.Version }

// IncrementVersion must be called once, immediately before the mutated
// record is persisted and after all validation has passed.
func (v *Versioned) IncrementVersion() { v.Version++ }

// CheckVersion fails when the record no longer carries the expected version.
func (v *Versioned) CheckVersion(expected int64) error {
	if v.Version != expected {
		return &apperr.ConcurrentModificationError{Expected: expected, Actual: v.Version}
	}
	return nil
}

// Record is implemented by every versioned entity.
type Record interface {
	Resource() string
	RecordID() uuid.UUID
	GetVersion() int64
	CheckVersion(expected int64) error
	IncrementVersion()
}

// CheckRecordVersion is CheckVersion with the resource name and id filled in.
func CheckRecordVersion(r Record, expected int64) error {
	if err := r.CheckVersion(expected); err != nil {
		cme := err.(*apperr.ConcurrentModificationError)
		cme.Resource = r.Resource()
		cme.ID = r.RecordID().String()
		return cme
	}
	return nil
}

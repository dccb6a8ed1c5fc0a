package models

import "slices"

// Snapshot is the complete set of subject records for one sampling cycle.
// A snapshot is either valid (the user position is usable) or the empty
// sentinel.
type Snapshot struct {
	User UserAircraft `json:"user"`
	AI   []Aircraft   `json:"ai"`
}

// EmptySnapshot returns the empty sentinel.
func EmptySnapshot() Snapshot { return Snapshot{} }

// IsEmpty reports whether s carries no usable data.
func (s Snapshot) IsEmpty() bool {
	return !s.User.Position.IsValid()
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.AI = slices.Clone(s.AI)
	return out
}

package models

import "time"

// NameRegistration binds a name hash to the identity that claimed it.
// Write-once: a hash can never be re-bound.
type NameRegistration struct {
	NameHash  string    `json:"name_hash"`
	Owner     string    `json:"owner"`
	Price     int64     `json:"price"`
	ClaimedAt time.Time `json:"claimed_at"`
}

func (n *NameRegistration) Clone() *NameRegistration {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}

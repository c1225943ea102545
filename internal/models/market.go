package models

import "time"

type Market struct {
	ID            uint64    `json:"id"`
	SheriffID     string    `json:"sheriff_id"`
	Name          string    `json:"name"`
	SheriffFeeBps int       `json:"sheriff_fee_bps"`
	Hidden        bool      `json:"hidden"`
	CreatedAt     time.Time `json:"created_at"`
}

func (m *Market) Clone() *Market {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// EscrowBalance accumulates funds held for a market: incremented exactly once
// per offer on acceptance, decremented exactly once on release or refund.
type EscrowBalance struct {
	MarketID uint64 `json:"market_id"`
	Balance  int64  `json:"balance"`
}

package models

import "time"

// Offer statuses
const (
	OfferStatusOpen           = "open"
	OfferStatusAccepted       = "accepted"
	OfferStatusProofSubmitted = "proof_submitted"
	OfferStatusFundsReleased  = "funds_released"
	OfferStatusCancelled      = "cancelled"
)

// Valid state transitions: from -> []to
var ValidOfferTransitions = map[string][]string{
	OfferStatusOpen:           {OfferStatusAccepted, OfferStatusCancelled},
	OfferStatusAccepted:       {OfferStatusProofSubmitted, OfferStatusCancelled},
	OfferStatusProofSubmitted: {OfferStatusFundsReleased},
	OfferStatusFundsReleased:  {},
	OfferStatusCancelled:      {},
}

func IsValidOfferTransition(from, to string) bool {
	allowed, ok := ValidOfferTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalOfferStatus reports whether no further transitions exist.
func IsTerminalOfferStatus(status string) bool {
	allowed, ok := ValidOfferTransitions[status]
	return ok && len(allowed) == 0
}

type Offer struct {
	ID          uint64     `json:"id"`
	MarketID    uint64     `json:"market_id"`
	SellerID    string     `json:"seller_id"`
	BuyerID     *string    `json:"buyer_id,omitempty"`
	Amount      int64      `json:"amount"`
	DetailsHash string     `json:"details_hash"`
	ProofHash   *string    `json:"proof_hash,omitempty"`
	Status      string     `json:"status"`
	Hidden      bool       `json:"hidden"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	ProofAt     *time.Time `json:"proof_at,omitempty"`
}

// InEscrow reports whether the offer currently holds funds in its market's
// escrow balance.
func (o *Offer) InEscrow() bool {
	return o.Status == OfferStatusAccepted || o.Status == OfferStatusProofSubmitted
}

// Clone returns a deep copy so callers cannot mutate ledger state through a
// returned offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	if o.BuyerID != nil {
		v := *o.BuyerID
		c.BuyerID = &v
	}
	if o.ProofHash != nil {
		v := *o.ProofHash
		c.ProofHash = &v
	}
	if o.AcceptedAt != nil {
		v := *o.AcceptedAt
		c.AcceptedAt = &v
	}
	if o.ProofAt != nil {
		v := *o.ProofAt
		c.ProofAt = &v
	}
	return &c
}

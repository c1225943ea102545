package contract

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/models"
)

// SweepResult lists what one background sweep pass resolved.
type SweepResult struct {
	Refunded []uint64 `json:"refunded"`
	Claimed  []uint64 `json:"claimed"`
}

// SweepTimeouts resolves every stalled funded offer whose window has elapsed:
// accepted offers past the refund window are cancelled with the deposit
// returned to the buyer, proof_submitted offers past the claim window release
// the full amount to the seller. Each offer resolves in its own transaction so
// one bad row does not block the rest of the pass.
func (e *Engine) SweepTimeouts(ctx context.Context) (*SweepResult, error) {
	var stale []*models.Offer
	err := e.store.Atomically(ctx, func(tx ledger.Tx) error {
		offers, err := tx.OffersInStatus(models.OfferStatusAccepted, models.OfferStatusProofSubmitted)
		if err != nil {
			return err
		}
		now := e.now()
		for _, o := range offers {
			if e.windowElapsed(o, now) {
				stale = append(stale, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &SweepResult{}
	for _, o := range stale {
		var op Op
		var caller string
		switch o.Status {
		case models.OfferStatusAccepted:
			if o.BuyerID == nil {
				continue
			}
			caller = *o.BuyerID
			op = BuyerRefundTimeout{OfferID: o.ID, BuyerID: caller}
		case models.OfferStatusProofSubmitted:
			caller = o.SellerID
			op = SellerRefundTimeout{OfferID: o.ID, SellerID: caller}
		default:
			continue
		}
		if _, err := e.Execute(ctx, caller, op); err != nil {
			// Another actor may have resolved the offer between the scan
			// and this transaction.
			if CodeOf(err) == CodeWrongState {
				continue
			}
			e.log.Warn("timeout sweep failed for offer",
				zap.Uint64("offer_id", o.ID),
				zap.String("status", o.Status),
				zap.Error(err),
			)
			continue
		}
		switch o.Status {
		case models.OfferStatusAccepted:
			res.Refunded = append(res.Refunded, o.ID)
		case models.OfferStatusProofSubmitted:
			res.Claimed = append(res.Claimed, o.ID)
		}
	}
	return res, nil
}

func (e *Engine) windowElapsed(o *models.Offer, now time.Time) bool {
	switch o.Status {
	case models.OfferStatusAccepted:
		return o.AcceptedAt != nil && !now.Before(o.AcceptedAt.Add(e.refundWindow))
	case models.OfferStatusProofSubmitted:
		return o.ProofAt != nil && !now.Before(o.ProofAt.Add(e.claimWindow))
	}
	return false
}

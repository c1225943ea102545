package contract

import (
	"fmt"
	"math"
)

// Operation names, matching the deployed contract's function table.
const (
	OpCreateMarket           = "create_market"
	OpPostOffer              = "post_offer"
	OpAcceptOffer            = "accept_offer"
	OpSubmitProof            = "submit_proof"
	OpReleaseFunds           = "release_funds"
	OpSetPlatformFee         = "set_platform_fee"
	OpCancelOfferBySheriff   = "cancel_offer_by_sheriff"
	OpCancelOfferBySeller    = "cancel_offer_by_seller"
	OpSetMarketHidden        = "set_market_hidden"
	OpSetOfferHidden         = "set_offer_hidden"
	OpSetOfferHiddenSheriff  = "set_offer_hidden_by_sheriff"
	OpBuyerRefundTimeout     = "buyer_refund_timeout"
	OpSellerRefundTimeout    = "seller_refund_timeout"
	OpRegisterName           = "register_name"
)

// Op is the closed union of operation requests. Each variant carries named
// fields; positional parameter lists exist only at the call boundary and are
// decoded once by DecodeOp.
type Op interface {
	Name() string
}

type CreateMarket struct {
	MarketID      uint64
	SheriffID     string
	MarketName    string
	SheriffFeeBps int
}

func (CreateMarket) Name() string { return OpCreateMarket }

type PostOffer struct {
	OfferID     uint64
	MarketID    uint64
	SellerID    string
	Amount      int64
	DetailsHash string
}

func (PostOffer) Name() string { return OpPostOffer }

type AcceptOffer struct {
	OfferID         uint64
	BuyerID         string
	MarketID        uint64
	DepositedAmount int64
}

func (AcceptOffer) Name() string { return OpAcceptOffer }

type SubmitProof struct {
	OfferID   uint64
	SellerID  string
	ProofHash string
}

func (SubmitProof) Name() string { return OpSubmitProof }

type ReleaseFunds struct {
	OfferID   uint64
	SheriffID string
	MarketID  uint64
}

func (ReleaseFunds) Name() string { return OpReleaseFunds }

type SetPlatformFee struct {
	NewFeeBps int
	CallerID  string
}

func (SetPlatformFee) Name() string { return OpSetPlatformFee }

type CancelOfferBySheriff struct {
	OfferID   uint64
	SheriffID string
	MarketID  uint64
}

func (CancelOfferBySheriff) Name() string { return OpCancelOfferBySheriff }

type CancelOfferBySeller struct {
	OfferID  uint64
	SellerID string
}

func (CancelOfferBySeller) Name() string { return OpCancelOfferBySeller }

type SetMarketHidden struct {
	MarketID uint64
	Hidden   bool
	CallerID string
}

func (SetMarketHidden) Name() string { return OpSetMarketHidden }

type SetOfferHidden struct {
	OfferID  uint64
	Hidden   bool
	CallerID string
}

func (SetOfferHidden) Name() string { return OpSetOfferHidden }

type SetOfferHiddenBySheriff struct {
	OfferID   uint64
	MarketID  uint64
	Hidden    bool
	SheriffID string
}

func (SetOfferHiddenBySheriff) Name() string { return OpSetOfferHiddenSheriff }

type BuyerRefundTimeout struct {
	OfferID uint64
	BuyerID string
}

func (BuyerRefundTimeout) Name() string { return OpBuyerRefundTimeout }

type SellerRefundTimeout struct {
	OfferID  uint64
	SellerID string
}

func (SellerRefundTimeout) Name() string { return OpSellerRefundTimeout }

type RegisterName struct {
	NameHash string
	Claimant string
	Price    int64
}

func (RegisterName) Name() string { return OpRegisterName }

// DecodeOp turns a named operation with an ordered parameter list into a typed
// request. Parameter order matches the contract function table; JSON numbers
// arrive as float64 and are converted with range checks.
func DecodeOp(name string, params []any) (Op, error) {
	d := &decoder{name: name, params: params}
	var op Op
	switch name {
	case OpCreateMarket:
		op = CreateMarket{
			MarketID:      d.uint64At(0, "market_id"),
			SheriffID:     d.stringAt(1, "sheriff_id"),
			MarketName:    d.stringAt(2, "market_name"),
			SheriffFeeBps: d.intAt(3, "sheriff_fee_bps"),
		}
	case OpPostOffer:
		op = PostOffer{
			OfferID:     d.uint64At(0, "offer_id"),
			MarketID:    d.uint64At(1, "market_id"),
			SellerID:    d.stringAt(2, "seller_id"),
			Amount:      d.int64At(3, "amount"),
			DetailsHash: d.stringAt(4, "details_hash"),
		}
	case OpAcceptOffer:
		op = AcceptOffer{
			OfferID:         d.uint64At(0, "offer_id"),
			BuyerID:         d.stringAt(1, "buyer_id"),
			MarketID:        d.uint64At(2, "market_id"),
			DepositedAmount: d.int64At(3, "deposited_amount"),
		}
	case OpSubmitProof:
		op = SubmitProof{
			OfferID:   d.uint64At(0, "offer_id"),
			SellerID:  d.stringAt(1, "seller_id"),
			ProofHash: d.stringAt(2, "proof_hash"),
		}
	case OpReleaseFunds:
		op = ReleaseFunds{
			OfferID:   d.uint64At(0, "offer_id"),
			SheriffID: d.stringAt(1, "sheriff_id"),
			MarketID:  d.uint64At(2, "market_id"),
		}
	case OpSetPlatformFee:
		op = SetPlatformFee{
			NewFeeBps: d.intAt(0, "new_fee_bps"),
			CallerID:  d.stringAt(1, "caller_id"),
		}
	case OpCancelOfferBySheriff:
		op = CancelOfferBySheriff{
			OfferID:   d.uint64At(0, "offer_id"),
			SheriffID: d.stringAt(1, "sheriff_id"),
			MarketID:  d.uint64At(2, "market_id"),
		}
	case OpCancelOfferBySeller:
		op = CancelOfferBySeller{
			OfferID:  d.uint64At(0, "offer_id"),
			SellerID: d.stringAt(1, "seller_id"),
		}
	case OpSetMarketHidden:
		op = SetMarketHidden{
			MarketID: d.uint64At(0, "market_id"),
			Hidden:   d.boolAt(1, "hidden"),
			CallerID: d.stringAt(2, "caller_id"),
		}
	case OpSetOfferHidden:
		op = SetOfferHidden{
			OfferID:  d.uint64At(0, "offer_id"),
			Hidden:   d.boolAt(1, "hidden"),
			CallerID: d.stringAt(2, "caller_id"),
		}
	case OpSetOfferHiddenSheriff:
		op = SetOfferHiddenBySheriff{
			OfferID:   d.uint64At(0, "offer_id"),
			MarketID:  d.uint64At(1, "market_id"),
			Hidden:    d.boolAt(2, "hidden"),
			SheriffID: d.stringAt(3, "sheriff_id"),
		}
	case OpBuyerRefundTimeout:
		op = BuyerRefundTimeout{
			OfferID: d.uint64At(0, "offer_id"),
			BuyerID: d.stringAt(1, "buyer_id"),
		}
	case OpSellerRefundTimeout:
		op = SellerRefundTimeout{
			OfferID:  d.uint64At(0, "offer_id"),
			SellerID: d.stringAt(1, "seller_id"),
		}
	case OpRegisterName:
		op = RegisterName{
			NameHash: d.stringAt(0, "name_hash"),
			Claimant: d.stringAt(1, "claimant"),
			Price:    d.int64At(2, "price"),
		}
	default:
		return nil, fmt.Errorf("unknown operation %q", name)
	}
	if d.err != nil {
		return nil, d.err
	}
	return op, nil
}

// decoder accumulates the first conversion error instead of erroring on every
// field access.
type decoder struct {
	name   string
	params []any
	err    error
}

func (d *decoder) at(i int, field string) (any, bool) {
	if d.err != nil {
		return nil, false
	}
	if i >= len(d.params) {
		d.err = fmt.Errorf("%s: missing parameter %d (%s)", d.name, i, field)
		return nil, false
	}
	return d.params[i], true
}

func (d *decoder) stringAt(i int, field string) string {
	v, ok := d.at(i, field)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.err = fmt.Errorf("%s: parameter %d (%s) must be a string, got %T", d.name, i, field, v)
		return ""
	}
	return s
}

func (d *decoder) boolAt(i int, field string) bool {
	v, ok := d.at(i, field)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.err = fmt.Errorf("%s: parameter %d (%s) must be a bool, got %T", d.name, i, field, v)
		return false
	}
	return b
}

func (d *decoder) int64At(i int, field string) int64 {
	v, ok := d.at(i, field)
	if !ok {
		return 0
	}
	n, err := toInt64(v)
	if err != nil {
		d.err = fmt.Errorf("%s: parameter %d (%s): %w", d.name, i, field, err)
		return 0
	}
	return n
}

func (d *decoder) intAt(i int, field string) int {
	return int(d.int64At(i, field))
}

func (d *decoder) uint64At(i int, field string) uint64 {
	n := d.int64At(i, field)
	if d.err == nil && n < 0 {
		d.err = fmt.Errorf("%s: parameter %d (%s) must be non-negative, got %d", d.name, i, field, n)
		return 0
	}
	return uint64(n)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > math.MaxInt64 {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

package dto

type AuthSessionRequest struct {
	Identity string `json:"identity"`
}

// CallRequest is the generic operation envelope: a function name from the
// contract table plus its positional parameter list.
type CallRequest struct {
	Op     string `json:"op"`
	Params []any  `json:"params"`
}

type CreateMarketRequest struct {
	MarketID      uint64 `json:"market_id"`
	SheriffID     string `json:"sheriff_id"`
	MarketName    string `json:"market_name"`
	SheriffFeeBps int    `json:"sheriff_fee_bps"`
}

type PostOfferRequest struct {
	OfferID     uint64 `json:"offer_id"`
	MarketID    uint64 `json:"market_id"`
	SellerID    string `json:"seller_id"`
	Amount      int64  `json:"amount"`
	DetailsHash string `json:"details_hash"`
}

type AcceptOfferRequest struct {
	BuyerID         string `json:"buyer_id"`
	MarketID        uint64 `json:"market_id"`
	DepositedAmount int64  `json:"deposited_amount"`
}

type SubmitProofRequest struct {
	SellerID  string `json:"seller_id"`
	ProofHash string `json:"proof_hash"`
}

type ReleaseFundsRequest struct {
	SheriffID string `json:"sheriff_id"`
	MarketID  uint64 `json:"market_id"`
}

type CancelOfferRequest struct {
	SheriffID string `json:"sheriff_id,omitempty"`
	SellerID  string `json:"seller_id,omitempty"`
	MarketID  uint64 `json:"market_id,omitempty"`
}

type SetPlatformFeeRequest struct {
	NewFeeBps int    `json:"new_fee_bps"`
	CallerID  string `json:"caller_id"`
}

type SetHiddenRequest struct {
	Hidden    bool   `json:"hidden"`
	CallerID  string `json:"caller_id,omitempty"`
	SheriffID string `json:"sheriff_id,omitempty"`
	MarketID  uint64 `json:"market_id,omitempty"`
}

type RegisterNameRequest struct {
	Name     string `json:"name"`
	Claimant string `json:"claimant"`
}

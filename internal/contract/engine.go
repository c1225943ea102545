// Package contract implements the marketplace escrow state machine: market
// creation, the offer lifecycle, escrow accounting, fee distribution,
// moderation, and name registration. Every operation is authorized, validated
// against current ledger state, and applied in a single atomic transaction.
package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/models"
)

// Result is the structured outcome of a successful operation. Failures are
// reported as errors carrying a Code; the call boundary folds both into the
// {success, message, data} envelope.
type Result struct {
	Op      string `json:"op"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ReleaseOutcome is the data payload of release_funds.
type ReleaseOutcome struct {
	Offer *models.Offer `json:"offer"`
	Split FeeSplit      `json:"split"`
}

type Engine struct {
	store        ledger.Store
	log          *zap.Logger
	nowFn        func() time.Time
	refundWindow time.Duration
	claimWindow  time.Duration
}

// NewEngine wires the state machine to a ledger store. refundWindow gates
// buyer_refund_timeout (measured from acceptance), claimWindow gates
// seller_refund_timeout (measured from proof submission).
func NewEngine(store ledger.Store, refundWindow, claimWindow time.Duration, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:        store,
		log:          log,
		nowFn:        time.Now,
		refundWindow: refundWindow,
		claimWindow:  claimWindow,
	}
}

// SetNowFunc overrides the time source, for deterministic timeout tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// Execute authorizes and applies one operation on behalf of caller. Either
// every write commits or none does; domain failures come back as *Error.
func (e *Engine) Execute(ctx context.Context, caller string, op Op) (*Result, error) {
	var res *Result
	err := e.store.Atomically(ctx, func(tx ledger.Tx) error {
		var txErr error
		switch req := op.(type) {
		case CreateMarket:
			res, txErr = e.createMarket(tx, caller, req)
		case PostOffer:
			res, txErr = e.postOffer(tx, caller, req)
		case AcceptOffer:
			res, txErr = e.acceptOffer(tx, caller, req)
		case SubmitProof:
			res, txErr = e.submitProof(tx, caller, req)
		case ReleaseFunds:
			res, txErr = e.releaseFunds(tx, caller, req)
		case SetPlatformFee:
			res, txErr = e.setPlatformFee(tx, caller, req)
		case CancelOfferBySheriff:
			res, txErr = e.cancelOfferBySheriff(tx, caller, req)
		case CancelOfferBySeller:
			res, txErr = e.cancelOfferBySeller(tx, caller, req)
		case SetMarketHidden:
			res, txErr = e.setMarketHidden(tx, caller, req)
		case SetOfferHidden:
			res, txErr = e.setOfferHidden(tx, caller, req)
		case SetOfferHiddenBySheriff:
			res, txErr = e.setOfferHiddenBySheriff(tx, caller, req)
		case BuyerRefundTimeout:
			res, txErr = e.buyerRefundTimeout(tx, caller, req)
		case SellerRefundTimeout:
			res, txErr = e.sellerRefundTimeout(tx, caller, req)
		case RegisterName:
			res, txErr = e.registerName(tx, caller, req)
		default:
			txErr = fmt.Errorf("unhandled operation %q", op.Name())
		}
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Call is the inbound operation boundary: decode a named operation with an
// ordered parameter list, execute it, and fold any failure into the result
// envelope. It never returns an error to the transport layer.
func (e *Engine) Call(ctx context.Context, caller, name string, params []any) CallResult {
	op, err := DecodeOp(name, params)
	if err != nil {
		return CallResult{Success: false, Message: err.Error()}
	}
	res, err := e.Execute(ctx, caller, op)
	if err != nil {
		return CallResult{Success: false, Message: err.Error(), Code: CodeOf(err)}
	}
	return CallResult{Success: true, Message: res.Message, Data: res.Data}
}

// CallResult is the wire envelope of callOperation.
type CallResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Code    Code   `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// State returns a point-in-time read-only snapshot of the ledger.
func (e *Engine) State(ctx context.Context) (*ledger.State, error) {
	return e.store.Snapshot(ctx)
}

func (e *Engine) now() time.Time {
	return e.nowFn()
}

// --- market & fee operations ---

func (e *Engine) createMarket(tx ledger.Tx, caller string, req CreateMarket) (*Result, error) {
	if err := requireDeclared(req.SheriffID, caller, "sheriff"); err != nil {
		return nil, err
	}
	existing, err := tx.Market(req.MarketID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExistsf("market %d already exists", req.MarketID)
	}
	platform, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if err := validateFeeRates(req.SheriffFeeBps, platform.PlatformFeeBps); err != nil {
		return nil, err
	}
	market := &models.Market{
		ID:            req.MarketID,
		SheriffID:     req.SheriffID,
		Name:          req.MarketName,
		SheriffFeeBps: req.SheriffFeeBps,
		CreatedAt:     e.now(),
	}
	if err := tx.PutMarket(market); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpCreateMarket,
		Message: fmt.Sprintf("market %q created with sheriff fee %d bps", market.Name, market.SheriffFeeBps),
		Data:    market,
	}, nil
}

func (e *Engine) setPlatformFee(tx ledger.Tx, caller string, req SetPlatformFee) (*Result, error) {
	if err := requireDeclared(req.CallerID, caller, "caller"); err != nil {
		return nil, err
	}
	platform, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if err := requireOwner(platform, caller); err != nil {
		return nil, err
	}
	// A fee update must keep every existing market's combined rate valid;
	// release never re-checks.
	markets, err := tx.Markets()
	if err != nil {
		return nil, err
	}
	maxSheriff := 0
	for _, m := range markets {
		if m.SheriffFeeBps > maxSheriff {
			maxSheriff = m.SheriffFeeBps
		}
	}
	if err := validateFeeRates(maxSheriff, req.NewFeeBps); err != nil {
		return nil, err
	}
	platform.PlatformFeeBps = req.NewFeeBps
	if err := tx.PutPlatform(platform); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpSetPlatformFee,
		Message: fmt.Sprintf("platform fee set to %d bps", req.NewFeeBps),
		Data:    platform,
	}, nil
}

// --- offer lifecycle ---

func (e *Engine) postOffer(tx ledger.Tx, caller string, req PostOffer) (*Result, error) {
	if err := requireDeclared(req.SellerID, caller, "seller"); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, invalidAmountf("offer amount must be positive, got %d", req.Amount)
	}
	existing, err := tx.Offer(req.OfferID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyExistsf("offer %d already exists", req.OfferID)
	}
	market, err := tx.Market(req.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil || market.Hidden {
		return nil, notFoundf("market %d not found or not accepting offers", req.MarketID)
	}
	offer := &models.Offer{
		ID:          req.OfferID,
		MarketID:    req.MarketID,
		SellerID:    req.SellerID,
		Amount:      req.Amount,
		DetailsHash: req.DetailsHash,
		Status:      models.OfferStatusOpen,
		CreatedAt:   e.now(),
	}
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpPostOffer,
		Message: fmt.Sprintf("offer %d posted for %d $NIGHT", offer.ID, offer.Amount),
		Data:    offer,
	}, nil
}

func (e *Engine) acceptOffer(tx ledger.Tx, caller string, req AcceptOffer) (*Result, error) {
	if err := requireDeclared(req.BuyerID, caller, "buyer"); err != nil {
		return nil, err
	}
	offer, err := e.offerInMarket(tx, req.OfferID, req.MarketID)
	if err != nil {
		return nil, err
	}
	if offer.Hidden {
		return nil, notFoundf("offer %d is hidden", offer.ID)
	}
	market, err := tx.Market(offer.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil || market.Hidden {
		return nil, notFoundf("market %d not found or hidden", offer.MarketID)
	}
	if offer.Status != models.OfferStatusOpen {
		return nil, wrongStatef("accept_offer", []string{models.OfferStatusOpen}, offer.Status)
	}
	// Exact deposit only: partial and over-deposits are rejected before any
	// escrow mutation.
	if req.DepositedAmount != offer.Amount {
		return nil, invalidAmountf("deposit %d does not match offer amount %d", req.DepositedAmount, offer.Amount)
	}
	now := e.now()
	buyer := req.BuyerID
	offer.BuyerID = &buyer
	offer.Status = models.OfferStatusAccepted
	offer.AcceptedAt = &now
	if err := e.creditEscrow(tx, offer.MarketID, offer.Amount); err != nil {
		return nil, err
	}
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpAcceptOffer,
		Message: fmt.Sprintf("offer %d accepted by buyer %s, %d $NIGHT in escrow", offer.ID, buyer, offer.Amount),
		Data:    offer,
	}, nil
}

func (e *Engine) submitProof(tx ledger.Tx, caller string, req SubmitProof) (*Result, error) {
	if err := requireDeclared(req.SellerID, caller, "seller"); err != nil {
		return nil, err
	}
	offer, err := e.offerByID(tx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if err := requireSeller(offer, caller); err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusAccepted {
		return nil, wrongStatef("submit_proof", []string{models.OfferStatusAccepted}, offer.Status)
	}
	now := e.now()
	proof := req.ProofHash
	offer.ProofHash = &proof
	offer.Status = models.OfferStatusProofSubmitted
	offer.ProofAt = &now
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpSubmitProof,
		Message: fmt.Sprintf("proof submitted for offer %d", offer.ID),
		Data:    offer,
	}, nil
}

func (e *Engine) releaseFunds(tx ledger.Tx, caller string, req ReleaseFunds) (*Result, error) {
	if err := requireDeclared(req.SheriffID, caller, "sheriff"); err != nil {
		return nil, err
	}
	offer, err := e.offerInMarket(tx, req.OfferID, req.MarketID)
	if err != nil {
		return nil, err
	}
	if offer.Hidden {
		return nil, notFoundf("offer %d is hidden", offer.ID)
	}
	market, err := tx.Market(offer.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, notFoundf("market %d not found", offer.MarketID)
	}
	if err := requireSheriff(market, caller); err != nil {
		return nil, err
	}
	// Re-invoking on an already released offer fails here, never double-pays.
	if offer.Status != models.OfferStatusProofSubmitted {
		return nil, wrongStatef("release_funds", []string{models.OfferStatusProofSubmitted}, offer.Status)
	}
	platform, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if err := e.debitEscrow(tx, offer.MarketID, offer.Amount); err != nil {
		return nil, err
	}
	split := splitFees(offer.Amount, market.SheriffFeeBps, platform.PlatformFeeBps)
	offer.Status = models.OfferStatusFundsReleased
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op: OpReleaseFunds,
		Message: fmt.Sprintf("funds released for offer %d: seller %d, sheriff %d, platform %d",
			offer.ID, split.SellerNet, split.SheriffFee, split.PlatformFee),
		Data: &ReleaseOutcome{Offer: offer, Split: split},
	}, nil
}

func (e *Engine) cancelOfferBySheriff(tx ledger.Tx, caller string, req CancelOfferBySheriff) (*Result, error) {
	if err := requireDeclared(req.SheriffID, caller, "sheriff"); err != nil {
		return nil, err
	}
	offer, err := e.offerInMarket(tx, req.OfferID, req.MarketID)
	if err != nil {
		return nil, err
	}
	market, err := tx.Market(offer.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, notFoundf("market %d not found", offer.MarketID)
	}
	if err := requireSheriff(market, caller); err != nil {
		return nil, err
	}
	return e.cancelOpenOffer(tx, offer, OpCancelOfferBySheriff)
}

func (e *Engine) cancelOfferBySeller(tx ledger.Tx, caller string, req CancelOfferBySeller) (*Result, error) {
	if err := requireDeclared(req.SellerID, caller, "seller"); err != nil {
		return nil, err
	}
	offer, err := e.offerByID(tx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if err := requireSeller(offer, caller); err != nil {
		return nil, err
	}
	return e.cancelOpenOffer(tx, offer, OpCancelOfferBySeller)
}

// cancelOpenOffer enforces the strict cancel rule: only open offers cancel
// directly. Funded offers must exit through the timeout refund/claim protocol
// so escrowed deposits are never cancelled away unilaterally.
func (e *Engine) cancelOpenOffer(tx ledger.Tx, offer *models.Offer, op string) (*Result, error) {
	if offer.Status != models.OfferStatusOpen {
		return nil, wrongStatef(op, []string{models.OfferStatusOpen}, offer.Status)
	}
	offer.Status = models.OfferStatusCancelled
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      op,
		Message: fmt.Sprintf("offer %d cancelled", offer.ID),
		Data:    offer,
	}, nil
}

// --- timeout refund / claim ---

func (e *Engine) buyerRefundTimeout(tx ledger.Tx, caller string, req BuyerRefundTimeout) (*Result, error) {
	if err := requireDeclared(req.BuyerID, caller, "buyer"); err != nil {
		return nil, err
	}
	offer, err := e.offerByID(tx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if err := requireBuyer(offer, caller); err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusAccepted {
		return nil, wrongStatef(OpBuyerRefundTimeout, []string{models.OfferStatusAccepted}, offer.Status)
	}
	if offer.AcceptedAt == nil || e.now().Before(offer.AcceptedAt.Add(e.refundWindow)) {
		return nil, newError(CodeWrongState, "refund window has not elapsed for offer %d", offer.ID)
	}
	if err := e.debitEscrow(tx, offer.MarketID, offer.Amount); err != nil {
		return nil, err
	}
	offer.Status = models.OfferStatusCancelled
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpBuyerRefundTimeout,
		Message: fmt.Sprintf("deposit of %d $NIGHT refunded to buyer for stalled offer %d", offer.Amount, offer.ID),
		Data:    offer,
	}, nil
}

func (e *Engine) sellerRefundTimeout(tx ledger.Tx, caller string, req SellerRefundTimeout) (*Result, error) {
	if err := requireDeclared(req.SellerID, caller, "seller"); err != nil {
		return nil, err
	}
	offer, err := e.offerByID(tx, req.OfferID)
	if err != nil {
		return nil, err
	}
	if err := requireSeller(offer, caller); err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusProofSubmitted {
		return nil, wrongStatef(OpSellerRefundTimeout, []string{models.OfferStatusProofSubmitted}, offer.Status)
	}
	if offer.ProofAt == nil || e.now().Before(offer.ProofAt.Add(e.claimWindow)) {
		return nil, newError(CodeWrongState, "claim window has not elapsed for offer %d", offer.ID)
	}
	if err := e.debitEscrow(tx, offer.MarketID, offer.Amount); err != nil {
		return nil, err
	}
	// The sheriff failed to act within the window; the full amount goes to
	// the seller with no fee split.
	offer.Status = models.OfferStatusFundsReleased
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpSellerRefundTimeout,
		Message: fmt.Sprintf("full amount of %d $NIGHT claimed by seller for offer %d", offer.Amount, offer.ID),
		Data:    offer,
	}, nil
}

// --- moderation ---

func (e *Engine) setMarketHidden(tx ledger.Tx, caller string, req SetMarketHidden) (*Result, error) {
	if err := requireDeclared(req.CallerID, caller, "caller"); err != nil {
		return nil, err
	}
	platform, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if err := requireOwner(platform, caller); err != nil {
		return nil, err
	}
	market, err := tx.Market(req.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, notFoundf("market %d not found", req.MarketID)
	}
	market.Hidden = req.Hidden
	if err := tx.PutMarket(market); err != nil {
		return nil, err
	}
	return &Result{
		Op:      OpSetMarketHidden,
		Message: fmt.Sprintf("market %d hidden=%v", market.ID, market.Hidden),
		Data:    market,
	}, nil
}

func (e *Engine) setOfferHidden(tx ledger.Tx, caller string, req SetOfferHidden) (*Result, error) {
	if err := requireDeclared(req.CallerID, caller, "caller"); err != nil {
		return nil, err
	}
	platform, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if err := requireOwner(platform, caller); err != nil {
		return nil, err
	}
	offer, err := e.offerByID(tx, req.OfferID)
	if err != nil {
		return nil, err
	}
	return e.applyOfferHidden(tx, offer, req.Hidden, OpSetOfferHidden)
}

func (e *Engine) setOfferHiddenBySheriff(tx ledger.Tx, caller string, req SetOfferHiddenBySheriff) (*Result, error) {
	if err := requireDeclared(req.SheriffID, caller, "sheriff"); err != nil {
		return nil, err
	}
	offer, err := e.offerInMarket(tx, req.OfferID, req.MarketID)
	if err != nil {
		return nil, err
	}
	market, err := tx.Market(offer.MarketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, notFoundf("market %d not found", offer.MarketID)
	}
	if err := requireSheriff(market, caller); err != nil {
		return nil, err
	}
	return e.applyOfferHidden(tx, offer, req.Hidden, OpSetOfferHiddenSheriff)
}

// applyOfferHidden flips visibility only. Status, amount and escrow are
// untouched, and unhiding restores full operability.
func (e *Engine) applyOfferHidden(tx ledger.Tx, offer *models.Offer, hidden bool, op string) (*Result, error) {
	offer.Hidden = hidden
	if err := tx.PutOffer(offer); err != nil {
		return nil, err
	}
	return &Result{
		Op:      op,
		Message: fmt.Sprintf("offer %d hidden=%v", offer.ID, offer.Hidden),
		Data:    offer,
	}, nil
}

// --- name registration ---

func (e *Engine) registerName(tx ledger.Tx, caller string, req RegisterName) (*Result, error) {
	if err := requireDeclared(req.Claimant, caller, "claimant"); err != nil {
		return nil, err
	}
	if req.NameHash == "" {
		return nil, newError(CodeInvalidAmount, "name hash must not be empty")
	}
	if req.Price < 0 {
		return nil, invalidAmountf("name price must be non-negative, got %d", req.Price)
	}
	reg := &models.NameRegistration{
		NameHash:  req.NameHash,
		Owner:     req.Claimant,
		Price:     req.Price,
		ClaimedAt: e.now(),
	}
	if err := tx.BindName(reg); err != nil {
		if errors.Is(err, ledger.ErrNameTaken) {
			return nil, alreadyExistsf("name hash %s already claimed", req.NameHash)
		}
		return nil, err
	}
	return &Result{
		Op:      OpRegisterName,
		Message: fmt.Sprintf("name hash %s claimed by %s", shortHash(req.NameHash), req.Claimant),
		Data:    reg,
	}, nil
}

// --- helpers ---

func (e *Engine) offerByID(tx ledger.Tx, id uint64) (*models.Offer, error) {
	offer, err := tx.Offer(id)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, notFoundf("offer %d not found", id)
	}
	return offer, nil
}

func (e *Engine) offerInMarket(tx ledger.Tx, offerID, marketID uint64) (*models.Offer, error) {
	offer, err := e.offerByID(tx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.MarketID != marketID {
		return nil, notFoundf("offer %d does not belong to market %d", offerID, marketID)
	}
	return offer, nil
}

func (e *Engine) creditEscrow(tx ledger.Tx, marketID uint64, amount int64) error {
	bal, err := tx.EscrowBalance(marketID)
	if err != nil {
		return err
	}
	return tx.SetEscrowBalance(marketID, bal+amount)
}

// debitEscrow fails with insufficient_escrow when the tracked balance cannot
// cover the amount. That means conservation has already been violated, so it
// is logged at error level rather than treated as a routine rejection.
func (e *Engine) debitEscrow(tx ledger.Tx, marketID uint64, amount int64) error {
	bal, err := tx.EscrowBalance(marketID)
	if err != nil {
		return err
	}
	if bal < amount {
		e.log.Error("escrow balance below tracked offer amount",
			zap.Uint64("market_id", marketID),
			zap.Int64("balance", bal),
			zap.Int64("amount", amount),
		)
		return insufficientEscrowf("escrow balance %d of market %d cannot cover %d", bal, marketID, amount)
	}
	return tx.SetEscrowBalance(marketID, bal-amount)
}

func shortHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8] + "..."
}

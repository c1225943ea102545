package contract

import (
	"context"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/models"
)

const (
	testOwner   = "owner_1"
	testSheriff = "sheriff_1"
	testSeller  = "seller_1"
	testBuyer   = "buyer_1"

	testWindow = 14 * 24 * time.Hour
)

func newTestEngine(platformFeeBps int) *Engine {
	store := ledger.NewMemory(testOwner, platformFeeBps)
	return NewEngine(store, testWindow, testWindow, zap.NewNop())
}

func mustExec(t *testing.T, e *Engine, caller string, op Op) *Result {
	t.Helper()
	res, err := e.Execute(context.Background(), caller, op)
	if err != nil {
		t.Fatalf("%s by %s failed: %v", op.Name(), caller, err)
	}
	return res
}

func execWantCode(t *testing.T, e *Engine, caller string, op Op, want Code) {
	t.Helper()
	_, err := e.Execute(context.Background(), caller, op)
	if err == nil {
		t.Fatalf("%s by %s succeeded, want %s error", op.Name(), caller, want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("%s by %s: code = %q, want %q (err: %v)", op.Name(), caller, got, want, err)
	}
}

func setupFundedOffer(t *testing.T, e *Engine) {
	t.Helper()
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "details"})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})
}

func snapshot(t *testing.T, e *Engine) *ledger.State {
	t.Helper()
	st, err := e.State(context.Background())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	return st
}

func offerStatus(t *testing.T, e *Engine, id uint64) string {
	t.Helper()
	for _, o := range snapshot(t, e).Offers {
		if o.ID == id {
			return o.Status
		}
	}
	t.Fatalf("offer %d not in snapshot", id)
	return ""
}

func escrowOf(t *testing.T, e *Engine, marketID uint64) int64 {
	t.Helper()
	for _, b := range snapshot(t, e).EscrowBalances {
		if b.MarketID == marketID {
			return b.Balance
		}
	}
	return 0
}

func TestCreateMarket(t *testing.T) {
	e := newTestEngine(100)

	res := mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 250})
	m, ok := res.Data.(*models.Market)
	if !ok {
		t.Fatalf("result data is %T, want *models.Market", res.Data)
	}
	if m.ID != 1 || m.SheriffID != testSheriff || m.SheriffFeeBps != 250 {
		t.Errorf("unexpected market: %+v", m)
	}

	execWantCode(t, e, testSheriff,
		CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Duplicate", SheriffFeeBps: 100},
		CodeAlreadyExists)

	// Declared sheriff must be the caller.
	execWantCode(t, e, "intruder",
		CreateMarket{MarketID: 2, SheriffID: testSheriff, MarketName: "Fake", SheriffFeeBps: 100},
		CodeUnauthorized)

	// Combined fees may not exceed 10000 bps given the 100 bps platform fee.
	execWantCode(t, e, testSheriff,
		CreateMarket{MarketID: 2, SheriffID: testSheriff, MarketName: "Greedy", SheriffFeeBps: 9901},
		CodeInvalidAmount)
	mustExec(t, e, testSheriff,
		CreateMarket{MarketID: 2, SheriffID: testSheriff, MarketName: "Maxed", SheriffFeeBps: 9900})
}

func TestOfferLifecycleAndFeeSplit(t *testing.T) {
	e := newTestEngine(50)

	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "details"})
	if got := offerStatus(t, e, 10); got != models.OfferStatusOpen {
		t.Fatalf("status after post = %q", got)
	}

	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})
	if got := escrowOf(t, e, 1); got != 1000 {
		t.Fatalf("escrow after accept = %d, want 1000", got)
	}

	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "proof"})
	if got := offerStatus(t, e, 10); got != models.OfferStatusProofSubmitted {
		t.Fatalf("status after proof = %q", got)
	}

	res := mustExec(t, e, testSheriff, ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1})
	out, ok := res.Data.(*ReleaseOutcome)
	if !ok {
		t.Fatalf("result data is %T, want *ReleaseOutcome", res.Data)
	}
	want := FeeSplit{SheriffFee: 10, PlatformFee: 5, SellerNet: 985}
	if out.Split != want {
		t.Errorf("split = %+v, want %+v", out.Split, want)
	}
	if got := offerStatus(t, e, 10); got != models.OfferStatusFundsReleased {
		t.Errorf("status after release = %q", got)
	}
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("escrow after release = %d, want 0", got)
	}
}

func TestAcceptOfferExactDepositOnly(t *testing.T) {
	e := newTestEngine(100)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "details"})

	execWantCode(t, e, testBuyer,
		AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 999},
		CodeInvalidAmount)
	execWantCode(t, e, testBuyer,
		AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1001},
		CodeInvalidAmount)

	// Rejected deposits leave nothing behind.
	if got := offerStatus(t, e, 10); got != models.OfferStatusOpen {
		t.Errorf("status after rejected deposits = %q, want open", got)
	}
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("escrow after rejected deposits = %d, want 0", got)
	}

	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})
	if got := escrowOf(t, e, 1); got != 1000 {
		t.Errorf("escrow after exact deposit = %d, want 1000", got)
	}
}

func TestPostOfferValidation(t *testing.T) {
	e := newTestEngine(100)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})

	execWantCode(t, e, testSeller,
		PostOffer{OfferID: 10, MarketID: 99, SellerID: testSeller, Amount: 1000, DetailsHash: "details"},
		CodeNotFound)
	execWantCode(t, e, testSeller,
		PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 0, DetailsHash: "details"},
		CodeInvalidAmount)
	execWantCode(t, e, testSeller,
		PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: -5, DetailsHash: "details"},
		CodeInvalidAmount)

	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "details"})
	execWantCode(t, e, testSeller,
		PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 500, DetailsHash: "other"},
		CodeAlreadyExists)
}

func TestDoubleReleaseFails(t *testing.T) {
	e := newTestEngine(100)
	setupFundedOffer(t, e)
	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "proof"})
	mustExec(t, e, testSheriff, ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1})

	execWantCode(t, e, testSheriff,
		ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1},
		CodeWrongState)
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("escrow after double release attempt = %d, want 0", got)
	}
}

func TestCancelRules(t *testing.T) {
	e := newTestEngine(100)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})

	// Seller cancels an open offer.
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "d"})
	mustExec(t, e, testSeller, CancelOfferBySeller{OfferID: 10, SellerID: testSeller})
	if got := offerStatus(t, e, 10); got != models.OfferStatusCancelled {
		t.Errorf("status after seller cancel = %q", got)
	}

	// Sheriff cancels an open offer.
	mustExec(t, e, testSeller, PostOffer{OfferID: 11, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "d"})
	mustExec(t, e, testSheriff, CancelOfferBySheriff{OfferID: 11, SheriffID: testSheriff, MarketID: 1})
	if got := offerStatus(t, e, 11); got != models.OfferStatusCancelled {
		t.Errorf("status after sheriff cancel = %q", got)
	}

	// Funded offers cannot be cancelled directly.
	mustExec(t, e, testSeller, PostOffer{OfferID: 12, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "d"})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 12, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})
	execWantCode(t, e, testSeller, CancelOfferBySeller{OfferID: 12, SellerID: testSeller}, CodeWrongState)
	execWantCode(t, e, testSheriff, CancelOfferBySheriff{OfferID: 12, SheriffID: testSheriff, MarketID: 1}, CodeWrongState)
	if got := escrowOf(t, e, 1); got != 1000 {
		t.Errorf("escrow after rejected cancels = %d, want 1000", got)
	}

	// A stranger cannot cancel at all.
	mustExec(t, e, testSeller, PostOffer{OfferID: 13, MarketID: 1, SellerID: testSeller, Amount: 500, DetailsHash: "d"})
	execWantCode(t, e, "intruder", CancelOfferBySeller{OfferID: 13, SellerID: "intruder"}, CodeUnauthorized)
}

func TestAuthorization(t *testing.T) {
	e := newTestEngine(100)
	setupFundedOffer(t, e)
	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "proof"})

	// Only the market's sheriff releases.
	execWantCode(t, e, "intruder",
		ReleaseFunds{OfferID: 10, SheriffID: "intruder", MarketID: 1},
		CodeUnauthorized)
	execWantCode(t, e, testSeller,
		ReleaseFunds{OfferID: 10, SheriffID: testSeller, MarketID: 1},
		CodeUnauthorized)

	// Only the offer's seller submits proof.
	execWantCode(t, e, "intruder",
		SubmitProof{OfferID: 10, SellerID: "intruder", ProofHash: "fake"},
		CodeUnauthorized)

	// Only the owner changes the platform fee or hides entities.
	execWantCode(t, e, testSheriff,
		SetPlatformFee{NewFeeBps: 0, CallerID: testSheriff},
		CodeUnauthorized)
	execWantCode(t, e, testSheriff,
		SetMarketHidden{MarketID: 1, Hidden: true, CallerID: testSheriff},
		CodeUnauthorized)

	// Declared actor must match the authenticated caller.
	execWantCode(t, e, testSheriff,
		ReleaseFunds{OfferID: 10, SheriffID: "someone_else", MarketID: 1},
		CodeUnauthorized)
}

func TestSetPlatformFee(t *testing.T) {
	e := newTestEngine(100)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 9900})

	// 9900 + 101 would exceed 10000 for the existing market.
	execWantCode(t, e, testOwner,
		SetPlatformFee{NewFeeBps: 101, CallerID: testOwner},
		CodeInvalidAmount)

	mustExec(t, e, testOwner, SetPlatformFee{NewFeeBps: 100, CallerID: testOwner})
	mustExec(t, e, testOwner, SetPlatformFee{NewFeeBps: 0, CallerID: testOwner})
	if got := snapshot(t, e).PlatformFeeBps; got != 0 {
		t.Errorf("platform fee = %d, want 0", got)
	}
}

func TestHiddenGates(t *testing.T) {
	e := newTestEngine(100)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "d"})

	// Hidden market rejects new offers and accepts.
	mustExec(t, e, testOwner, SetMarketHidden{MarketID: 1, Hidden: true, CallerID: testOwner})
	execWantCode(t, e, testSeller,
		PostOffer{OfferID: 11, MarketID: 1, SellerID: testSeller, Amount: 500, DetailsHash: "d"},
		CodeNotFound)
	execWantCode(t, e, testBuyer,
		AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000},
		CodeNotFound)

	// Unhiding restores full operability.
	mustExec(t, e, testOwner, SetMarketHidden{MarketID: 1, Hidden: false, CallerID: testOwner})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})

	// Hidden offer rejects release but keeps status and escrow intact.
	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "proof"})
	mustExec(t, e, testSheriff, SetOfferHiddenBySheriff{OfferID: 10, MarketID: 1, Hidden: true, SheriffID: testSheriff})
	if got := offerStatus(t, e, 10); got != models.OfferStatusProofSubmitted {
		t.Errorf("status after hide = %q, want proof_submitted", got)
	}
	if got := escrowOf(t, e, 1); got != 1000 {
		t.Errorf("escrow after hide = %d, want 1000", got)
	}
	execWantCode(t, e, testSheriff,
		ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1},
		CodeNotFound)

	// Owner unhides via the global moderation operation, release proceeds.
	mustExec(t, e, testOwner, SetOfferHidden{OfferID: 10, Hidden: false, CallerID: testOwner})
	mustExec(t, e, testSheriff, ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1})
}

func TestTimeoutRefund(t *testing.T) {
	e := newTestEngine(100)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	e.SetNowFunc(func() time.Time { return now })
	setupFundedOffer(t, e)

	// Window not elapsed yet.
	execWantCode(t, e, testBuyer, BuyerRefundTimeout{OfferID: 10, BuyerID: testBuyer}, CodeWrongState)

	now = now.Add(testWindow)
	// Only the buyer may claim the refund.
	execWantCode(t, e, testSeller, BuyerRefundTimeout{OfferID: 10, BuyerID: testSeller}, CodeUnauthorized)

	mustExec(t, e, testBuyer, BuyerRefundTimeout{OfferID: 10, BuyerID: testBuyer})
	if got := offerStatus(t, e, 10); got != models.OfferStatusCancelled {
		t.Errorf("status after refund = %q, want cancelled", got)
	}
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("escrow after refund = %d, want 0", got)
	}
}

func TestTimeoutClaim(t *testing.T) {
	e := newTestEngine(100)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	e.SetNowFunc(func() time.Time { return now })
	setupFundedOffer(t, e)
	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "proof"})

	execWantCode(t, e, testSeller, SellerRefundTimeout{OfferID: 10, SellerID: testSeller}, CodeWrongState)

	now = now.Add(testWindow)
	mustExec(t, e, testSeller, SellerRefundTimeout{OfferID: 10, SellerID: testSeller})
	if got := offerStatus(t, e, 10); got != models.OfferStatusFundsReleased {
		t.Errorf("status after claim = %q, want funds_released", got)
	}
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("escrow after claim = %d, want 0", got)
	}
}

func TestSweepTimeouts(t *testing.T) {
	e := newTestEngine(100)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	e.SetNowFunc(func() time.Time { return now })

	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})

	// Offer 10: accepted and stalled.
	mustExec(t, e, testSeller, PostOffer{OfferID: 10, MarketID: 1, SellerID: testSeller, Amount: 1000, DetailsHash: "d"})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 10, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 1000})

	// Offer 11: proof submitted and stalled.
	mustExec(t, e, testSeller, PostOffer{OfferID: 11, MarketID: 1, SellerID: testSeller, Amount: 500, DetailsHash: "d"})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 11, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 500})
	mustExec(t, e, testSeller, SubmitProof{OfferID: 11, SellerID: testSeller, ProofHash: "p"})

	now = now.Add(testWindow)

	// Offer 12: accepted, but fresh.
	mustExec(t, e, testSeller, PostOffer{OfferID: 12, MarketID: 1, SellerID: testSeller, Amount: 200, DetailsHash: "d"})
	mustExec(t, e, testBuyer, AcceptOffer{OfferID: 12, BuyerID: testBuyer, MarketID: 1, DepositedAmount: 200})

	res, err := e.SweepTimeouts(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(res.Refunded) != 1 || res.Refunded[0] != 10 {
		t.Errorf("refunded = %v, want [10]", res.Refunded)
	}
	if len(res.Claimed) != 1 || res.Claimed[0] != 11 {
		t.Errorf("claimed = %v, want [11]", res.Claimed)
	}
	if got := offerStatus(t, e, 10); got != models.OfferStatusCancelled {
		t.Errorf("offer 10 status = %q, want cancelled", got)
	}
	if got := offerStatus(t, e, 11); got != models.OfferStatusFundsReleased {
		t.Errorf("offer 11 status = %q, want funds_released", got)
	}
	if got := offerStatus(t, e, 12); got != models.OfferStatusAccepted {
		t.Errorf("offer 12 status = %q, want accepted", got)
	}
	if got := escrowOf(t, e, 1); got != 200 {
		t.Errorf("escrow after sweep = %d, want 200", got)
	}
}

func TestEndToEndRelease(t *testing.T) {
	e := newTestEngine(0)

	mustExec(t, e, "sheriffA", CreateMarket{MarketID: 1, SheriffID: "sheriffA", MarketName: "Electronics", SheriffFeeBps: 100})
	mustExec(t, e, "sellerX", PostOffer{OfferID: 101, MarketID: 1, SellerID: "sellerX", Amount: 1000, DetailsHash: "hashABC"})
	mustExec(t, e, "buyerY", AcceptOffer{OfferID: 101, BuyerID: "buyerY", MarketID: 1, DepositedAmount: 1000})
	mustExec(t, e, "sellerX", SubmitProof{OfferID: 101, SellerID: "sellerX", ProofHash: "proofDEF"})
	res := mustExec(t, e, "sheriffA", ReleaseFunds{OfferID: 101, SheriffID: "sheriffA", MarketID: 1})

	out := res.Data.(*ReleaseOutcome)
	want := FeeSplit{SheriffFee: 10, PlatformFee: 0, SellerNet: 990}
	if out.Split != want {
		t.Errorf("split = %+v, want %+v", out.Split, want)
	}
	if got := offerStatus(t, e, 101); got != models.OfferStatusFundsReleased {
		t.Errorf("final status = %q, want funds_released", got)
	}
	if got := escrowOf(t, e, 1); got != 0 {
		t.Errorf("final escrow = %d, want 0", got)
	}
}

func TestRegisterName(t *testing.T) {
	e := newTestEngine(100)

	mustExec(t, e, "claimant_1", RegisterName{NameHash: "deadbeef", Claimant: "claimant_1", Price: 60})
	execWantCode(t, e, "claimant_2",
		RegisterName{NameHash: "deadbeef", Claimant: "claimant_2", Price: 60},
		CodeAlreadyExists)
	execWantCode(t, e, "claimant_1",
		RegisterName{NameHash: "cafe", Claimant: "claimant_1", Price: -1},
		CodeInvalidAmount)
	execWantCode(t, e, "claimant_1",
		RegisterName{NameHash: "", Claimant: "claimant_1", Price: 10},
		CodeInvalidAmount)

	st := snapshot(t, e)
	if len(st.NameRegistry) != 1 || st.NameRegistry[0].Owner != "claimant_1" {
		t.Errorf("unexpected name registry: %+v", st.NameRegistry)
	}
}

func TestEscrowConservation(t *testing.T) {
	e := newTestEngine(50)
	mustExec(t, e, testSheriff, CreateMarket{MarketID: 1, SheriffID: testSheriff, MarketName: "Night Bazaar", SheriffFeeBps: 100})

	amounts := map[uint64]int64{10: 1000, 11: 333, 12: 7, 13: 909}
	for id, amount := range amounts {
		mustExec(t, e, testSeller, PostOffer{OfferID: id, MarketID: 1, SellerID: testSeller, Amount: amount, DetailsHash: "d"})
		mustExec(t, e, testBuyer, AcceptOffer{OfferID: id, BuyerID: testBuyer, MarketID: 1, DepositedAmount: amount})
	}
	mustExec(t, e, testSeller, SubmitProof{OfferID: 10, SellerID: testSeller, ProofHash: "p"})
	mustExec(t, e, testSheriff, ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1})
	mustExec(t, e, testSeller, SubmitProof{OfferID: 12, SellerID: testSeller, ProofHash: "p"})

	// Escrow must equal the sum of amounts still held in escrow.
	var want int64
	for _, o := range snapshot(t, e).Offers {
		if o.InEscrow() {
			want += o.Amount
		}
	}
	if got := escrowOf(t, e, 1); got != want {
		t.Errorf("escrow = %d, want %d", got, want)
	}
	if want != 333+7+909 {
		t.Errorf("in-escrow total = %d, want %d", want, 333+7+909)
	}
}

func TestFailedOperationLeavesNoPartialState(t *testing.T) {
	e := newTestEngine(100)
	setupFundedOffer(t, e)
	before := snapshot(t, e)

	execWantCode(t, e, testSheriff,
		ReleaseFunds{OfferID: 10, SheriffID: testSheriff, MarketID: 1},
		CodeWrongState) // no proof submitted yet

	after := snapshot(t, e)
	if !reflect.DeepEqual(before.Offers, after.Offers) {
		t.Errorf("offers changed by failed operation: %+v -> %+v", before.Offers, after.Offers)
	}
	if escrowOf(t, e, 1) != 1000 {
		t.Errorf("escrow changed by failed operation")
	}
}

func TestCallEnvelope(t *testing.T) {
	e := newTestEngine(100)

	res := e.Call(context.Background(), testSheriff, OpCreateMarket,
		[]any{float64(1), testSheriff, "Night Bazaar", float64(250)})
	if !res.Success {
		t.Fatalf("call failed: %s", res.Message)
	}

	res = e.Call(context.Background(), testSheriff, OpCreateMarket,
		[]any{float64(1), testSheriff, "Duplicate", float64(100)})
	if res.Success {
		t.Fatal("duplicate create succeeded")
	}
	if res.Code != CodeAlreadyExists {
		t.Errorf("code = %q, want already_exists", res.Code)
	}

	res = e.Call(context.Background(), testSheriff, "no_such_op", nil)
	if res.Success {
		t.Fatal("unknown op succeeded")
	}
}

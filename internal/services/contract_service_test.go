package services

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/midnight-markets/backend/internal/contract"
	"github.com/midnight-markets/backend/internal/events"
	"github.com/midnight-markets/backend/internal/ledger"
	"github.com/midnight-markets/backend/internal/models"
)

type fakeAuditor struct {
	entries []models.AuditLog
}

func (f *fakeAuditor) Log(_ context.Context, entry models.AuditLog) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakePublisher struct {
	published []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, _ string, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}

func newTestService() (*ContractService, *fakeAuditor, *fakePublisher) {
	store := ledger.NewMemory("owner_1", 100)
	engine := contract.NewEngine(store, 14*24*time.Hour, 14*24*time.Hour, zap.NewNop())
	audit := &fakeAuditor{}
	pub := &fakePublisher{}
	return NewContractService(engine, audit, pub, zap.NewNop()), audit, pub
}

func TestCallRecordsAuditAndPublishes(t *testing.T) {
	svc, audit, pub := newTestService()
	ctx := context.Background()

	res := svc.Call(ctx, "sheriff_1", contract.OpCreateMarket,
		[]any{float64(1), "sheriff_1", "Night Bazaar", float64(250)})
	if !res.Success {
		t.Fatalf("call failed: %s", res.Message)
	}

	if len(audit.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(audit.entries))
	}
	entry := audit.entries[0]
	if entry.Actor != "sheriff_1" || entry.Operation != contract.OpCreateMarket || entry.EntityType != "market" {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
	if entry.EntityID == nil || *entry.EntityID != 1 {
		t.Errorf("audit entity id = %v, want 1", entry.EntityID)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published events = %d, want 1", len(pub.published))
	}
	if pub.published[0].Type != events.EventMarketCreated {
		t.Errorf("event type = %q, want market_created", pub.published[0].Type)
	}
}

func TestFailedCallIsNotRecorded(t *testing.T) {
	svc, audit, pub := newTestService()
	ctx := context.Background()

	// Declared sheriff does not match caller.
	res := svc.Call(ctx, "intruder", contract.OpCreateMarket,
		[]any{float64(1), "sheriff_1", "Fake", float64(100)})
	if res.Success {
		t.Fatal("unauthorized call succeeded")
	}
	if res.Code != contract.CodeUnauthorized {
		t.Errorf("code = %q, want unauthorized", res.Code)
	}

	if len(audit.entries) != 0 || len(pub.published) != 0 {
		t.Errorf("failed call recorded: %d audits, %d events", len(audit.entries), len(pub.published))
	}
}

func TestExecuteLifecycleEventTypes(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	mustStep := func(caller string, op contract.Op) {
		t.Helper()
		if _, err := svc.Execute(ctx, caller, op); err != nil {
			t.Fatalf("%s failed: %v", op.Name(), err)
		}
	}

	mustStep("sheriff_1", contract.CreateMarket{MarketID: 1, SheriffID: "sheriff_1", MarketName: "Night Bazaar", SheriffFeeBps: 100})
	mustStep("seller_1", contract.PostOffer{OfferID: 10, MarketID: 1, SellerID: "seller_1", Amount: 1000, DetailsHash: "d"})
	mustStep("buyer_1", contract.AcceptOffer{OfferID: 10, BuyerID: "buyer_1", MarketID: 1, DepositedAmount: 1000})
	mustStep("seller_1", contract.SubmitProof{OfferID: 10, SellerID: "seller_1", ProofHash: "p"})
	mustStep("sheriff_1", contract.ReleaseFunds{OfferID: 10, SheriffID: "sheriff_1", MarketID: 1})

	wantTypes := []string{
		events.EventMarketCreated,
		events.EventOfferStatusChanged,
		events.EventOfferStatusChanged,
		events.EventOfferStatusChanged,
		events.EventOfferStatusChanged,
	}
	if len(pub.published) != len(wantTypes) {
		t.Fatalf("published events = %d, want %d", len(pub.published), len(wantTypes))
	}
	for i, want := range wantTypes {
		if pub.published[i].Type != want {
			t.Errorf("event %d type = %q, want %q", i, pub.published[i].Type, want)
		}
	}
}

func TestSweepTimeoutsPublishes(t *testing.T) {
	store := ledger.NewMemory("owner_1", 100)
	engine := contract.NewEngine(store, time.Hour, time.Hour, zap.NewNop())
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	engine.SetNowFunc(func() time.Time { return now })
	pub := &fakePublisher{}
	svc := NewContractService(engine, &fakeAuditor{}, pub, zap.NewNop())
	ctx := context.Background()

	if _, err := svc.Execute(ctx, "sheriff_1", contract.CreateMarket{MarketID: 1, SheriffID: "sheriff_1", MarketName: "Night Bazaar", SheriffFeeBps: 100}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Execute(ctx, "seller_1", contract.PostOffer{OfferID: 10, MarketID: 1, SellerID: "seller_1", Amount: 1000, DetailsHash: "d"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Execute(ctx, "buyer_1", contract.AcceptOffer{OfferID: 10, BuyerID: "buyer_1", MarketID: 1, DepositedAmount: 1000}); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Hour)
	published := len(pub.published)

	res, err := svc.SweepTimeouts(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(res.Refunded) != 1 || res.Refunded[0] != 10 {
		t.Fatalf("refunded = %v, want [10]", res.Refunded)
	}
	if len(pub.published) != published+1 {
		t.Fatalf("sweep published %d events, want 1", len(pub.published)-published)
	}
	last := pub.published[len(pub.published)-1]
	if last.Type != events.EventOfferStatusChanged {
		t.Errorf("event type = %q, want offer_status_changed", last.Type)
	}
	if last.Payload["status"] != models.OfferStatusCancelled {
		t.Errorf("event status = %v, want cancelled", last.Payload["status"])
	}
}

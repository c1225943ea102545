package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/midnight-markets/backend/internal/models"
)

// Memory is an in-process Store. A single mutex serializes transactions
// (single-writer queue); writes are buffered per transaction and applied only
// when the transaction function succeeds, so a failing operation leaves no
// torn state behind.
type Memory struct {
	mu       sync.Mutex
	platform models.Platform
	markets  map[uint64]*models.Market
	offers   map[uint64]*models.Offer
	escrow   map[uint64]int64
	names    map[string]*models.NameRegistration
}

// NewMemory creates a store with the genesis platform state. OwnerID is fixed
// for the lifetime of the store.
func NewMemory(ownerID string, platformFeeBps int) *Memory {
	return &Memory{
		platform: models.Platform{OwnerID: ownerID, PlatformFeeBps: platformFeeBps},
		markets:  make(map[uint64]*models.Market),
		offers:   make(map[uint64]*models.Offer),
		escrow:   make(map[uint64]int64),
		names:    make(map[string]*models.NameRegistration),
	}
}

func (m *Memory) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) Snapshot(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	st := &State{
		OwnerID:        m.platform.OwnerID,
		PlatformFeeBps: m.platform.PlatformFeeBps,
		Markets:        make([]models.Market, 0, len(m.markets)),
		Offers:         make([]models.Offer, 0, len(m.offers)),
		EscrowBalances: make([]models.EscrowBalance, 0, len(m.escrow)),
		NameRegistry:   make([]models.NameRegistration, 0, len(m.names)),
		NextMarketID:   1,
		NextOfferID:    1,
	}
	for _, mk := range m.markets {
		st.Markets = append(st.Markets, *mk.Clone())
		if mk.ID >= st.NextMarketID {
			st.NextMarketID = mk.ID + 1
		}
	}
	for _, o := range m.offers {
		st.Offers = append(st.Offers, *o.Clone())
		if o.ID >= st.NextOfferID {
			st.NextOfferID = o.ID + 1
		}
	}
	for id, bal := range m.escrow {
		st.EscrowBalances = append(st.EscrowBalances, models.EscrowBalance{MarketID: id, Balance: bal})
	}
	for _, n := range m.names {
		st.NameRegistry = append(st.NameRegistry, *n.Clone())
	}
	sort.Slice(st.Markets, func(i, j int) bool { return st.Markets[i].ID < st.Markets[j].ID })
	sort.Slice(st.Offers, func(i, j int) bool { return st.Offers[i].ID < st.Offers[j].ID })
	sort.Slice(st.EscrowBalances, func(i, j int) bool { return st.EscrowBalances[i].MarketID < st.EscrowBalances[j].MarketID })
	sort.Slice(st.NameRegistry, func(i, j int) bool { return st.NameRegistry[i].NameHash < st.NameRegistry[j].NameHash })
	return st, nil
}

// memTx buffers writes until commit. Reads see the transaction's own pending
// writes first, then the committed base state.
type memTx struct {
	store           *Memory
	pendingPlatform *models.Platform
	pendingMarkets  map[uint64]*models.Market
	pendingOffers   map[uint64]*models.Offer
	pendingEscrow   map[uint64]int64
	pendingNames    map[string]*models.NameRegistration
}

func (t *memTx) Platform() (*models.Platform, error) {
	if t.pendingPlatform != nil {
		return t.pendingPlatform.Clone(), nil
	}
	return t.store.platform.Clone(), nil
}

func (t *memTx) PutPlatform(p *models.Platform) error {
	t.pendingPlatform = p.Clone()
	return nil
}

func (t *memTx) Market(id uint64) (*models.Market, error) {
	if t.pendingMarkets != nil {
		if m, ok := t.pendingMarkets[id]; ok {
			return m.Clone(), nil
		}
	}
	if m, ok := t.store.markets[id]; ok {
		return m.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) PutMarket(m *models.Market) error {
	if t.pendingMarkets == nil {
		t.pendingMarkets = make(map[uint64]*models.Market)
	}
	t.pendingMarkets[m.ID] = m.Clone()
	return nil
}

func (t *memTx) Markets() ([]*models.Market, error) {
	seen := make(map[uint64]bool)
	var out []*models.Market
	for id, m := range t.pendingMarkets {
		seen[id] = true
		out = append(out, m.Clone())
	}
	for id, m := range t.store.markets {
		if !seen[id] {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Offer(id uint64) (*models.Offer, error) {
	if t.pendingOffers != nil {
		if o, ok := t.pendingOffers[id]; ok {
			return o.Clone(), nil
		}
	}
	if o, ok := t.store.offers[id]; ok {
		return o.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) PutOffer(o *models.Offer) error {
	if t.pendingOffers == nil {
		t.pendingOffers = make(map[uint64]*models.Offer)
	}
	t.pendingOffers[o.ID] = o.Clone()
	return nil
}

func (t *memTx) EscrowBalance(marketID uint64) (int64, error) {
	if t.pendingEscrow != nil {
		if bal, ok := t.pendingEscrow[marketID]; ok {
			return bal, nil
		}
	}
	return t.store.escrow[marketID], nil
}

func (t *memTx) SetEscrowBalance(marketID uint64, balance int64) error {
	if t.pendingEscrow == nil {
		t.pendingEscrow = make(map[uint64]int64)
	}
	t.pendingEscrow[marketID] = balance
	return nil
}

func (t *memTx) Name(hash string) (*models.NameRegistration, error) {
	if t.pendingNames != nil {
		if n, ok := t.pendingNames[hash]; ok {
			return n.Clone(), nil
		}
	}
	if n, ok := t.store.names[hash]; ok {
		return n.Clone(), nil
	}
	return nil, nil
}

func (t *memTx) BindName(n *models.NameRegistration) error {
	existing, err := t.Name(n.NameHash)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrNameTaken
	}
	if t.pendingNames == nil {
		t.pendingNames = make(map[string]*models.NameRegistration)
	}
	t.pendingNames[n.NameHash] = n.Clone()
	return nil
}

func (t *memTx) OffersInStatus(statuses ...string) ([]*models.Offer, error) {
	want := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*models.Offer
	for id, o := range t.store.offers {
		if t.pendingOffers != nil {
			if p, ok := t.pendingOffers[id]; ok {
				o = p
			}
		}
		if want[o.Status] {
			out = append(out, o.Clone())
		}
	}
	if t.pendingOffers != nil {
		for id, o := range t.pendingOffers {
			if _, existed := t.store.offers[id]; !existed && want[o.Status] {
				out = append(out, o.Clone())
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) commit() {
	if t.pendingPlatform != nil {
		t.store.platform = *t.pendingPlatform
	}
	for id, m := range t.pendingMarkets {
		t.store.markets[id] = m
	}
	for id, o := range t.pendingOffers {
		t.store.offers[id] = o
	}
	for id, bal := range t.pendingEscrow {
		t.store.escrow[id] = bal
	}
	for hash, n := range t.pendingNames {
		t.store.names[hash] = n
	}
}

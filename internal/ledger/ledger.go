// Package ledger holds every entity table behind an atomic transaction
// boundary. All writes issued by one operation commit together or not at all.
package ledger

import (
	"context"
	"errors"

	"github.com/midnight-markets/backend/internal/models"
)

// ErrNameTaken is returned by BindName when the hash is already claimed.
// Uniqueness is checked and written inside the same transaction.
var ErrNameTaken = errors.New("ledger: name hash already claimed")

// Tx is the read/write surface available inside one atomic transaction.
// Lookups return (nil, nil) when the entity is absent; the engine maps that to
// its own not-found error.
type Tx interface {
	Platform() (*models.Platform, error)
	PutPlatform(p *models.Platform) error

	Market(id uint64) (*models.Market, error)
	PutMarket(m *models.Market) error

	// Markets lists every market, used to validate fee-rate changes
	// against all existing sheriff rates.
	Markets() ([]*models.Market, error)

	Offer(id uint64) (*models.Offer, error)
	PutOffer(o *models.Offer) error

	EscrowBalance(marketID uint64) (int64, error)
	SetEscrowBalance(marketID uint64, balance int64) error

	Name(hash string) (*models.NameRegistration, error)
	BindName(n *models.NameRegistration) error

	// OffersInStatus lists offers currently in any of the given statuses,
	// used by timeout sweeps and conservation checks.
	OffersInStatus(statuses ...string) ([]*models.Offer, error)
}

// Store is the Ledger Store contract: short synchronous atomic transactions
// plus a point-in-time read-only snapshot.
type Store interface {
	// Atomically runs fn inside a transaction. If fn returns an error no
	// write is applied. Transactions touching the same keys serialize;
	// the loser re-reads post-commit state on its next attempt.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	// Snapshot returns a consistent copy of all entity tables. Mutating
	// the copy has no effect on the store.
	Snapshot(ctx context.Context) (*State, error)
}

// State is the read-only snapshot shape returned to API consumers.
type State struct {
	OwnerID        string                    `json:"owner_id"`
	PlatformFeeBps int                       `json:"platform_fee_bps"`
	Markets        []models.Market           `json:"markets"`
	Offers         []models.Offer            `json:"offers"`
	EscrowBalances []models.EscrowBalance    `json:"escrow_balances"`
	NameRegistry   []models.NameRegistration `json:"name_registry"`
	NextMarketID   uint64                    `json:"next_market_id"`
	NextOfferID    uint64                    `json:"next_offer_id"`
}

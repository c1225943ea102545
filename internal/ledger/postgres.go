package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/midnight-markets/backend/internal/models"
)

// Postgres is the durable Store. Each Atomically call is one database
// transaction; entity reads take row locks so concurrent operations on the
// same offer or market serialize and the loser re-reads committed state.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureGenesis inserts the singleton platform row if it does not exist yet.
// The owner identity is fixed at genesis and never overwritten.
func (p *Postgres) EnsureGenesis(ctx context.Context, ownerID string, platformFeeBps int) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO platform_state (singleton, owner_id, platform_fee_bps)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (singleton) DO NOTHING
	`, ownerID, platformFeeBps)
	return err
}

func (p *Postgres) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	dbtx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(&pgTx{ctx: ctx, tx: dbtx}); err != nil {
		_ = dbtx.Rollback(ctx)
		return err
	}
	return dbtx.Commit(ctx)
}

func (p *Postgres) Snapshot(ctx context.Context) (*State, error) {
	st := &State{NextMarketID: 1, NextOfferID: 1}

	err := p.pool.QueryRow(ctx, `
		SELECT owner_id, platform_fee_bps FROM platform_state WHERE singleton
	`).Scan(&st.OwnerID, &st.PlatformFeeBps)
	if err != nil {
		return nil, fmt.Errorf("snapshot platform: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, sheriff_id, name, sheriff_fee_bps, hidden, created_at
		FROM markets ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var m models.Market
		if err := rows.Scan(&m.ID, &m.SheriffID, &m.Name, &m.SheriffFeeBps, &m.Hidden, &m.CreatedAt); err != nil {
			return nil, err
		}
		st.Markets = append(st.Markets, m)
		if m.ID >= st.NextMarketID {
			st.NextMarketID = m.ID + 1
		}
	}

	rows, err = p.pool.Query(ctx, `
		SELECT id, market_id, seller_id, buyer_id, amount, details_hash, proof_hash,
		       status, hidden, created_at, accepted_at, proof_at
		FROM offers ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.MarketID, &o.SellerID, &o.BuyerID, &o.Amount, &o.DetailsHash,
			&o.ProofHash, &o.Status, &o.Hidden, &o.CreatedAt, &o.AcceptedAt, &o.ProofAt); err != nil {
			return nil, err
		}
		st.Offers = append(st.Offers, o)
		if o.ID >= st.NextOfferID {
			st.NextOfferID = o.ID + 1
		}
	}

	rows, err = p.pool.Query(ctx, `SELECT market_id, balance FROM escrow_balances ORDER BY market_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b models.EscrowBalance
		if err := rows.Scan(&b.MarketID, &b.Balance); err != nil {
			return nil, err
		}
		st.EscrowBalances = append(st.EscrowBalances, b)
	}

	rows, err = p.pool.Query(ctx, `SELECT name_hash, owner, price, claimed_at FROM name_registry ORDER BY name_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n models.NameRegistration
		if err := rows.Scan(&n.NameHash, &n.Owner, &n.Price, &n.ClaimedAt); err != nil {
			return nil, err
		}
		st.NameRegistry = append(st.NameRegistry, n)
	}

	return st, nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) Platform() (*models.Platform, error) {
	var p models.Platform
	err := t.tx.QueryRow(t.ctx, `
		SELECT owner_id, platform_fee_bps FROM platform_state WHERE singleton FOR UPDATE
	`).Scan(&p.OwnerID, &p.PlatformFeeBps)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *pgTx) PutPlatform(p *models.Platform) error {
	_, err := t.tx.Exec(t.ctx, `
		UPDATE platform_state SET platform_fee_bps = $1 WHERE singleton
	`, p.PlatformFeeBps)
	return err
}

func (t *pgTx) Market(id uint64) (*models.Market, error) {
	var m models.Market
	err := t.tx.QueryRow(t.ctx, `
		SELECT id, sheriff_id, name, sheriff_fee_bps, hidden, created_at
		FROM markets WHERE id = $1 FOR UPDATE
	`, id).Scan(&m.ID, &m.SheriffID, &m.Name, &m.SheriffFeeBps, &m.Hidden, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (t *pgTx) PutMarket(m *models.Market) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO markets (id, sheriff_id, name, sheriff_fee_bps, hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET sheriff_id = $2, name = $3, sheriff_fee_bps = $4, hidden = $5
	`, m.ID, m.SheriffID, m.Name, m.SheriffFeeBps, m.Hidden, m.CreatedAt)
	return err
}

func (t *pgTx) Markets() ([]*models.Market, error) {
	rows, err := t.tx.Query(t.ctx, `
		SELECT id, sheriff_id, name, sheriff_fee_bps, hidden, created_at
		FROM markets ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Market
	for rows.Next() {
		var m models.Market
		if err := rows.Scan(&m.ID, &m.SheriffID, &m.Name, &m.SheriffFeeBps, &m.Hidden, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (t *pgTx) Offer(id uint64) (*models.Offer, error) {
	var o models.Offer
	err := t.tx.QueryRow(t.ctx, `
		SELECT id, market_id, seller_id, buyer_id, amount, details_hash, proof_hash,
		       status, hidden, created_at, accepted_at, proof_at
		FROM offers WHERE id = $1 FOR UPDATE
	`, id).Scan(&o.ID, &o.MarketID, &o.SellerID, &o.BuyerID, &o.Amount, &o.DetailsHash,
		&o.ProofHash, &o.Status, &o.Hidden, &o.CreatedAt, &o.AcceptedAt, &o.ProofAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (t *pgTx) PutOffer(o *models.Offer) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO offers (id, market_id, seller_id, buyer_id, amount, details_hash, proof_hash,
		                    status, hidden, created_at, accepted_at, proof_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET buyer_id = $4, proof_hash = $7, status = $8, hidden = $9, accepted_at = $11, proof_at = $12
	`, o.ID, o.MarketID, o.SellerID, o.BuyerID, o.Amount, o.DetailsHash, o.ProofHash,
		o.Status, o.Hidden, o.CreatedAt, o.AcceptedAt, o.ProofAt)
	return err
}

func (t *pgTx) EscrowBalance(marketID uint64) (int64, error) {
	var bal int64
	err := t.tx.QueryRow(t.ctx, `
		SELECT balance FROM escrow_balances WHERE market_id = $1 FOR UPDATE
	`, marketID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (t *pgTx) SetEscrowBalance(marketID uint64, balance int64) error {
	_, err := t.tx.Exec(t.ctx, `
		INSERT INTO escrow_balances (market_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (market_id) DO UPDATE SET balance = $2
	`, marketID, balance)
	return err
}

func (t *pgTx) Name(hash string) (*models.NameRegistration, error) {
	var n models.NameRegistration
	err := t.tx.QueryRow(t.ctx, `
		SELECT name_hash, owner, price, claimed_at FROM name_registry WHERE name_hash = $1
	`, hash).Scan(&n.NameHash, &n.Owner, &n.Price, &n.ClaimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (t *pgTx) BindName(n *models.NameRegistration) error {
	// Write-once: the primary key plus DO NOTHING makes the uniqueness
	// check and the bind one atomic statement.
	tag, err := t.tx.Exec(t.ctx, `
		INSERT INTO name_registry (name_hash, owner, price, claimed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name_hash) DO NOTHING
	`, n.NameHash, n.Owner, n.Price, n.ClaimedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNameTaken
	}
	return nil
}

func (t *pgTx) OffersInStatus(statuses ...string) ([]*models.Offer, error) {
	rows, err := t.tx.Query(t.ctx, `
		SELECT id, market_id, seller_id, buyer_id, amount, details_hash, proof_hash,
		       status, hidden, created_at, accepted_at, proof_at
		FROM offers WHERE status = ANY($1) ORDER BY id
	`, statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Offer
	for rows.Next() {
		var o models.Offer
		if err := rows.Scan(&o.ID, &o.MarketID, &o.SellerID, &o.BuyerID, &o.Amount, &o.DetailsHash,
			&o.ProofHash, &o.Status, &o.Hidden, &o.CreatedAt, &o.AcceptedAt, &o.ProofAt); err != nil {
			return nil, err
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

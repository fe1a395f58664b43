package database

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nft_marketplace/internal/config"
	"nft_marketplace/internal/marketplace"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS listings (
	collection TEXT NOT NULL,
	token_id   NUMERIC(78, 0) NOT NULL,
	price      NUMERIC(78, 0) NOT NULL CHECK (price > 0),
	seller     TEXT NOT NULL,
	PRIMARY KEY (collection, token_id)
);
CREATE TABLE IF NOT EXISTS proceeds (
	account TEXT PRIMARY KEY,
	amount  NUMERIC(78, 0) NOT NULL CHECK (amount > 0)
);`

// PostgresStore persists the marketplace ledgers in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ marketplace.Storage = (*PostgresStore)(nil)

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// OpenPostgres connects to PostgreSQL and creates the ledger tables if missing.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := NewPostgresStore(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore wraps an existing pool and creates the ledger tables if missing.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxKey struct {
	store *PostgresStore
}

type pgTx struct {
	tx     pgx.Tx
	closed atomic.Bool
}

func (s *PostgresStore) activeTx(ctx context.Context) (pgx.Tx, bool) {
	t, ok := ctx.Value(pgTxKey{store: s}).(*pgTx)
	if !ok || t.closed.Load() {
		return nil, false
	}
	return t.tx, true
}

func (s *PostgresStore) q(ctx context.Context) pgQuerier {
	if tx, ok := s.activeTx(ctx); ok {
		return tx
	}
	return s.pool
}

// WithTx runs fn inside one PostgreSQL transaction, committed only when fn succeeds.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.activeTx(ctx); ok {
		return fn(ctx)
	}
	t := &pgTx{}
	defer t.closed.Store(true)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t.tx = tx
		return fn(context.WithValue(ctx, pgTxKey{store: s}, t))
	})
}

func (s *PostgresStore) GetListing(ctx context.Context, key marketplace.AssetKey) (marketplace.Listing, bool, error) {
	var price, seller string
	err := s.q(ctx).QueryRow(ctx,
		`SELECT price::text, seller FROM listings WHERE collection = $1 AND token_id = $2::numeric`,
		addrText(key.Collection), tokenText(key),
	).Scan(&price, &seller)
	if errors.Is(err, pgx.ErrNoRows) {
		return marketplace.Listing{}, false, nil
	}
	if err != nil {
		return marketplace.Listing{}, false, fmt.Errorf("get listing: %w", err)
	}
	item, err := decodeListing(addrText(key.Collection), tokenText(key), price, seller)
	if err != nil {
		return marketplace.Listing{}, false, err
	}
	return item.Listing, true, nil
}

func (s *PostgresStore) PutListing(ctx context.Context, key marketplace.AssetKey, listing marketplace.Listing) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO listings (collection, token_id, price, seller) VALUES ($1, $2::numeric, $3::numeric, $4)
		 ON CONFLICT (collection, token_id) DO UPDATE SET price = EXCLUDED.price, seller = EXCLUDED.seller`,
		addrText(key.Collection), tokenText(key), amountText(listing.Price), addrText(listing.Seller),
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteListing(ctx context.Context, key marketplace.AssetKey) error {
	_, err := s.q(ctx).Exec(ctx,
		`DELETE FROM listings WHERE collection = $1 AND token_id = $2::numeric`,
		addrText(key.Collection), tokenText(key),
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) Listings(ctx context.Context) ([]marketplace.ListedItem, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT collection, token_id::text, price::text, seller FROM listings ORDER BY collection, token_id`)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var items []marketplace.ListedItem
	for rows.Next() {
		var collection, tokenID, price, seller string
		if err := rows.Scan(&collection, &tokenID, &price, &seller); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		item, err := decodeListing(collection, tokenID, price, seller)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProceeds(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount string
	err := s.q(ctx).QueryRow(ctx,
		`SELECT amount::text FROM proceeds WHERE account = $1`, addrText(account),
	).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proceeds: %w", err)
	}
	return parseAmount(amount)
}

func (s *PostgresStore) SetProceeds(ctx context.Context, account common.Address, amount *big.Int) error {
	if amount != nil && amount.Sign() < 0 {
		return marketplace.ErrInvalidAmount
	}
	var err error
	if amount == nil || amount.Sign() == 0 {
		_, err = s.q(ctx).Exec(ctx, `DELETE FROM proceeds WHERE account = $1`, addrText(account))
	} else {
		_, err = s.q(ctx).Exec(ctx,
			`INSERT INTO proceeds (account, amount) VALUES ($1, $2::numeric)
			 ON CONFLICT (account) DO UPDATE SET amount = EXCLUDED.amount`,
			addrText(account), amount.String(),
		)
	}
	if err != nil {
		return fmt.Errorf("set proceeds: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"

	"nft_marketplace/internal/marketplace"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	collection TEXT NOT NULL,
	token_id   TEXT NOT NULL,
	price      TEXT NOT NULL,
	seller     TEXT NOT NULL,
	PRIMARY KEY (collection, token_id)
);
CREATE TABLE IF NOT EXISTS proceeds (
	account TEXT PRIMARY KEY,
	amount  TEXT NOT NULL
);`

// SQLiteStore persists the marketplace ledgers in SQLite.
type SQLiteStore struct {
	sqlDB *sql.DB
}

var _ marketplace.Storage = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) a SQLite ledger store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB}, nil
}

type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteTxKey struct {
	store *SQLiteStore
}

type sqliteTx struct {
	tx     *sql.Tx
	closed atomic.Bool
}

func (s *SQLiteStore) activeTx(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(sqliteTxKey{store: s}).(*sqliteTx)
	if !ok || t.closed.Load() {
		return nil, false
	}
	return t.tx, true
}

func (s *SQLiteStore) q(ctx context.Context) sqliteQuerier {
	if tx, ok := s.activeTx(ctx); ok {
		return tx
	}
	return s.sqlDB
}

// WithTx runs fn inside one SQLite transaction, committed only when fn succeeds.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.activeTx(ctx); ok {
		return fn(ctx)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	t := &sqliteTx{tx: tx}
	defer func() {
		t.closed.Store(true)
		_ = tx.Rollback()
	}()

	if err := fn(context.WithValue(ctx, sqliteTxKey{store: s}, t)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) GetListing(ctx context.Context, key marketplace.AssetKey) (marketplace.Listing, bool, error) {
	var price, seller string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT price, seller FROM listings WHERE collection = ? AND token_id = ?`,
		addrText(key.Collection), tokenText(key),
	).Scan(&price, &seller)
	if errors.Is(err, sql.ErrNoRows) {
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

func (s *SQLiteStore) PutListing(ctx context.Context, key marketplace.AssetKey, listing marketplace.Listing) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`INSERT INTO listings (collection, token_id, price, seller) VALUES (?, ?, ?, ?)
		 ON CONFLICT (collection, token_id) DO UPDATE SET price = excluded.price, seller = excluded.seller`,
		addrText(key.Collection), tokenText(key), amountText(listing.Price), addrText(listing.Seller),
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteListing(ctx context.Context, key marketplace.AssetKey) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM listings WHERE collection = ? AND token_id = ?`,
		addrText(key.Collection), tokenText(key),
	)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Listings(ctx context.Context) ([]marketplace.ListedItem, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT collection, token_id, price, seller FROM listings
		 ORDER BY collection, length(token_id), token_id`)
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

func (s *SQLiteStore) GetProceeds(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount string
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT amount FROM proceeds WHERE account = ?`, addrText(account),
	).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get proceeds: %w", err)
	}
	return parseAmount(amount)
}

func (s *SQLiteStore) SetProceeds(ctx context.Context, account common.Address, amount *big.Int) error {
	if amount != nil && amount.Sign() < 0 {
		return marketplace.ErrInvalidAmount
	}
	var err error
	if amount == nil || amount.Sign() == 0 {
		_, err = s.q(ctx).ExecContext(ctx, `DELETE FROM proceeds WHERE account = ?`, addrText(account))
	} else {
		_, err = s.q(ctx).ExecContext(ctx,
			`INSERT INTO proceeds (account, amount) VALUES (?, ?)
			 ON CONFLICT (account) DO UPDATE SET amount = excluded.amount`,
			addrText(account), amount.String(),
		)
	}
	if err != nil {
		return fmt.Errorf("set proceeds: %w", err)
	}
	return nil
}

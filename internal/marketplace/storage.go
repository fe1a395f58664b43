package marketplace

import (
	"bytes"
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Storage holds the listing and proceeds ledgers. Only Service mutates it.
type Storage interface {
	// GetListing reports false when key has no active listing.
	GetListing(ctx context.Context, key AssetKey) (Listing, bool, error)
	PutListing(ctx context.Context, key AssetKey, listing Listing) error
	DeleteListing(ctx context.Context, key AssetKey) error
	// Listings returns every active listing ordered by key.
	Listings(ctx context.Context) ([]ListedItem, error)
	// GetProceeds returns zero for accounts that were never credited.
	GetProceeds(ctx context.Context, account common.Address) (*big.Int, error)
	// SetProceeds stores amount; zero removes the balance.
	SetProceeds(ctx context.Context, account common.Address, amount *big.Int) error
	// WithTx runs fn so that its writes through ctx land together or not at all.
	// Calls nested inside fn join the same transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LocalStorage provides an in-memory implementation of Storage.
type LocalStorage struct {
	mu       sync.RWMutex
	listings map[string]ListedItem
	proceeds map[common.Address]*big.Int
}

// NewLocalStorage instantiates a new LocalStorage with empty ledgers.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		listings: map[string]ListedItem{},
		proceeds: map[common.Address]*big.Int{},
	}
}

func (l *LocalStorage) GetListing(_ context.Context, key AssetKey) (Listing, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.listings[key.String()]
	if !ok {
		return Listing{}, false, nil
	}
	return item.Listing.clone(), true, nil
}

func (l *LocalStorage) PutListing(_ context.Context, key AssetKey, listing Listing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listings[key.String()] = ListedItem{
		Key:     NewAssetKey(key.Collection, key.TokenID),
		Listing: listing.clone(),
	}
	return nil
}

func (l *LocalStorage) DeleteListing(_ context.Context, key AssetKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listings, key.String())
	return nil
}

func (l *LocalStorage) Listings(_ context.Context) ([]ListedItem, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	items := make([]ListedItem, 0, len(l.listings))
	for _, item := range l.listings {
		items = append(items, ListedItem{
			Key:     NewAssetKey(item.Key.Collection, item.Key.TokenID),
			Listing: item.Listing.clone(),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		return lessKey(items[i].Key, items[j].Key)
	})
	return items, nil
}

func (l *LocalStorage) GetProceeds(_ context.Context, account common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAmount(l.proceeds[account]), nil
}

func (l *LocalStorage) SetProceeds(_ context.Context, account common.Address, amount *big.Int) error {
	if amount != nil && amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if amount == nil || amount.Sign() == 0 {
		delete(l.proceeds, account)
		return nil
	}
	l.proceeds[account] = cloneAmount(amount)
	return nil
}

// WithTx runs fn directly. The service journal undoes in-memory writes of a failed call.
func (l *LocalStorage) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func lessKey(a, b AssetKey) bool {
	if c := bytes.Compare(a.Collection[:], b.Collection[:]); c != 0 {
		return c < 0
	}
	return a.tokenID().Cmp(b.tokenID()) < 0
}

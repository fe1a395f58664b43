package database

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft_marketplace/internal/marketplace"
)

var (
	collectionA = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	collectionB = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	seller      = common.HexToAddress("0xf39Fd6e51aad88F6F4Ce6aB8827279cffFb92266")
	other       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

// exerciseStorage runs the ledger contract every Storage backend must honor.
func exerciseStorage(t *testing.T, store marketplace.Storage) {
	t.Helper()
	ctx := context.Background()

	hugeID, _ := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	key := marketplace.NewAssetKey(collectionA, big.NewInt(5))
	key10 := marketplace.NewAssetKey(collectionA, big.NewInt(10))
	keyHuge := marketplace.NewAssetKey(collectionB, hugeID)

	t.Run("missing listing", func(t *testing.T) {
		_, ok, err := store.GetListing(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("put get update delete", func(t *testing.T) {
		require.NoError(t, store.PutListing(ctx, key, marketplace.Listing{Price: big.NewInt(100), Seller: seller}))

		got, ok, err := store.GetListing(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "100", got.Price.String())
		assert.Equal(t, seller, got.Seller)

		require.NoError(t, store.PutListing(ctx, key, marketplace.Listing{Price: big.NewInt(150), Seller: seller}))
		got, _, err = store.GetListing(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "150", got.Price.String())

		require.NoError(t, store.DeleteListing(ctx, key))
		_, ok, err = store.GetListing(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, store.DeleteListing(ctx, key), "deleting a missing listing is a no-op")
	})

	t.Run("listings are ordered by key", func(t *testing.T) {
		huge := new(big.Int).Lsh(big.NewInt(1), 200)
		require.NoError(t, store.PutListing(ctx, keyHuge, marketplace.Listing{Price: huge, Seller: other}))
		require.NoError(t, store.PutListing(ctx, key10, marketplace.Listing{Price: big.NewInt(2), Seller: seller}))
		require.NoError(t, store.PutListing(ctx, key, marketplace.Listing{Price: big.NewInt(1), Seller: seller}))

		items, err := store.Listings(ctx)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, key.String(), items[0].Key.String())
		assert.Equal(t, key10.String(), items[1].Key.String())
		assert.Equal(t, keyHuge.String(), items[2].Key.String())
		assert.Equal(t, 0, huge.Cmp(items[2].Listing.Price))

		for _, k := range []marketplace.AssetKey{key, key10, keyHuge} {
			require.NoError(t, store.DeleteListing(ctx, k))
		}
	})

	t.Run("proceeds", func(t *testing.T) {
		got, err := store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Sign())

		require.NoError(t, store.SetProceeds(ctx, seller, big.NewInt(300)))
		got, err = store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, "300", got.String())

		require.NoError(t, store.SetProceeds(ctx, seller, new(big.Int)))
		got, err = store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Sign())

		assert.ErrorIs(t, store.SetProceeds(ctx, seller, big.NewInt(-1)), marketplace.ErrInvalidAmount)
	})
}

// exerciseRollback checks that a failing WithTx function leaves no trace in a
// transactional backend.
func exerciseRollback(t *testing.T, store marketplace.Storage) {
	t.Helper()
	ctx := context.Background()
	key := marketplace.NewAssetKey(collectionA, big.NewInt(77))
	fail := errors.New("operation failed")

	require.NoError(t, store.SetProceeds(ctx, seller, big.NewInt(5)))
	t.Cleanup(func() {
		_ = store.SetProceeds(ctx, seller, new(big.Int))
		_ = store.DeleteListing(ctx, key)
	})

	t.Run("failed function is rolled back", func(t *testing.T) {
		err := store.WithTx(ctx, func(ctx context.Context) error {
			require.NoError(t, store.PutListing(ctx, key, marketplace.Listing{Price: big.NewInt(10), Seller: seller}))
			require.NoError(t, store.SetProceeds(ctx, seller, big.NewInt(500)))

			_, ok, err := store.GetListing(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok, "writes are visible inside the transaction")

			return store.WithTx(ctx, func(context.Context) error { return fail })
		})
		assert.ErrorIs(t, err, fail)

		_, ok, err := store.GetListing(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		got, err := store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, "5", got.String())
	})

	t.Run("successful function commits", func(t *testing.T) {
		require.NoError(t, store.WithTx(ctx, func(ctx context.Context) error {
			return store.SetProceeds(ctx, seller, big.NewInt(6))
		}))
		got, err := store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, "6", got.String())
	})

	t.Run("context kept after the transaction writes directly", func(t *testing.T) {
		var kept context.Context
		require.NoError(t, store.WithTx(ctx, func(ctx context.Context) error {
			kept = ctx
			return nil
		}))
		require.NoError(t, store.SetProceeds(kept, seller, big.NewInt(7)))
		got, err := store.GetProceeds(ctx, seller)
		require.NoError(t, err)
		assert.Equal(t, "7", got.String())
	})
}

func TestLocalStorage(t *testing.T) {
	exerciseStorage(t, marketplace.NewLocalStorage())
}

package nft

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice  = common.HexToAddress("0xf39Fd6e51aad88F6F4Ce6aB8827279cffFb92266")
	bob    = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	market = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func deployAndMint(t *testing.T) (*Registry, common.Address, *big.Int) {
	t.Helper()
	ctx := context.Background()
	r := NewRegistry()
	coll, err := r.Deploy(ctx, alice, "Dogie", "DOG", "ipfs://dogie")
	require.NoError(t, err)
	id, err := r.Mint(ctx, coll, alice)
	require.NoError(t, err)
	return r, coll, id
}

func TestDeployAddresses(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	first, err := r.Deploy(ctx, alice, "A", "A", "")
	require.NoError(t, err)
	second, err := r.Deploy(ctx, alice, "B", "B", "")
	require.NoError(t, err)

	assert.Equal(t, crypto.CreateAddress(alice, 0), first)
	assert.Equal(t, crypto.CreateAddress(alice, 1), second)

	info, err := r.Collection(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "B", info.Name)
	assert.Equal(t, uint64(0), info.Minted)
}

func TestMintSequentialIDs(t *testing.T) {
	r, coll, first := deployAndMint(t)
	assert.Equal(t, "0", first.String())

	second, err := r.Mint(context.Background(), coll, bob)
	require.NoError(t, err)
	assert.Equal(t, "1", second.String())

	_, err = r.Mint(context.Background(), common.Address{1}, bob)
	assert.ErrorIs(t, err, ErrUnknownCollection)
	_, err = r.Mint(context.Background(), coll, common.Address{})
	assert.ErrorIs(t, err, ErrZeroAddress)
}

func TestApprove(t *testing.T) {
	ctx := context.Background()
	r, coll, id := deployAndMint(t)

	assert.ErrorIs(t, r.Approve(ctx, bob, coll, id, bob), ErrNotAuthorized)
	require.NoError(t, r.Approve(ctx, alice, coll, id, market))

	approved, err := r.GetApproved(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, market, approved)

	tok, err := r.Token(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, alice, tok.Owner)
	assert.Equal(t, "ipfs://dogie", tok.URI)

	_, err = r.GetApproved(ctx, coll, big.NewInt(42))
	assert.ErrorIs(t, err, ErrNonexistentToken)
}

func TestTransferFrom(t *testing.T) {
	ctx := context.Background()

	t.Run("approved operator moves the token and clears approval", func(t *testing.T) {
		r, coll, id := deployAndMint(t)
		require.NoError(t, r.Approve(ctx, alice, coll, id, market))

		require.NoError(t, r.TransferFrom(ctx, market, alice, bob, coll, id))

		owner, err := r.OwnerOf(ctx, coll, id)
		require.NoError(t, err)
		assert.Equal(t, bob, owner)
		approved, err := r.GetApproved(ctx, coll, id)
		require.NoError(t, err)
		assert.Equal(t, common.Address{}, approved)
	})

	t.Run("rejects unauthorized operator and wrong owner", func(t *testing.T) {
		r, coll, id := deployAndMint(t)

		assert.ErrorIs(t, r.TransferFrom(ctx, market, alice, bob, coll, id), ErrNotAuthorized)
		assert.ErrorIs(t, r.TransferFrom(ctx, bob, bob, alice, coll, id), ErrIncorrectOwner)
	})

	t.Run("receiver hook failure rolls back", func(t *testing.T) {
		r, coll, id := deployAndMint(t)
		require.NoError(t, r.Approve(ctx, alice, coll, id, market))
		refuse := errors.New("no thanks")
		r.OnReceive(bob, func(ctx context.Context, operator, from, collection common.Address, tokenID *big.Int) error {
			owner, err := r.OwnerOf(ctx, collection, tokenID)
			require.NoError(t, err)
			assert.Equal(t, bob, owner, "hook runs after the move")
			return refuse
		})

		err := r.TransferFrom(ctx, market, alice, bob, coll, id)
		assert.ErrorIs(t, err, refuse)

		owner, err := r.OwnerOf(ctx, coll, id)
		require.NoError(t, err)
		assert.Equal(t, alice, owner)
		approved, err := r.GetApproved(ctx, coll, id)
		require.NoError(t, err)
		assert.Equal(t, market, approved)
	})
}

func TestTransferFromRollsBackHookEffects(t *testing.T) {
	ctx := context.Background()
	r, coll, id := deployAndMint(t)
	require.NoError(t, r.Approve(ctx, alice, coll, id, market))

	r.OnReceive(bob, func(ctx context.Context, operator, from, collection common.Address, tokenID *big.Int) error {
		if err := r.Approve(ctx, bob, collection, tokenID, bob); err != nil {
			return err
		}
		if _, err := r.Mint(ctx, collection, bob); err != nil {
			return err
		}
		return errors.New("no thanks")
	})

	require.Error(t, r.TransferFrom(ctx, market, alice, bob, coll, id))

	tok, err := r.Token(ctx, coll, id)
	require.NoError(t, err)
	assert.Equal(t, alice, tok.Owner)
	assert.Equal(t, market, tok.Approved)

	info, err := r.Collection(ctx, coll)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Minted, "mint made by the hook is undone")
	_, err = r.OwnerOf(ctx, coll, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNonexistentToken)
}

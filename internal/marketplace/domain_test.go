package marketplace

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft_marketplace/internal/journal"
)

func TestParseAssetKey(t *testing.T) {
	key, err := ParseAssetKey("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512", "5")
	require.NoError(t, err)
	assert.Equal(t, "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512/5", key.String())

	_, err = ParseAssetKey("nope", "5")
	assert.Error(t, err)
	_, err = ParseAssetKey("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512", "-1")
	assert.Error(t, err)
	_, err = ParseAssetKey("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512", "x")
	assert.Error(t, err)
}

func TestNewAssetKeyCopiesTokenID(t *testing.T) {
	id := big.NewInt(3)
	key := NewAssetKey(common.Address{}, id)
	id.SetInt64(4)
	assert.Equal(t, "3", key.TokenID.String())
}

func TestEnvelopeMarshalJSON(t *testing.T) {
	env := Envelope{
		ID:        "evt-1",
		EmittedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Event: ItemBought{
			Buyer: user,
			Key:   NewAssetKey(marketAddr, big.NewInt(9)),
			Price: big.NewInt(100),
		},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "evt-1", got["id"])
	assert.Equal(t, "ItemBought", got["event"])
	assert.Equal(t, user.Hex(), got["buyer"])
	assert.Equal(t, marketAddr.Hex(), got["collection"])
	assert.Equal(t, "9", got["token_id"])
	assert.Equal(t, "100", got["price"])
	assert.NotContains(t, got, "seller")
}

func TestErrorCode(t *testing.T) {
	key := NewAssetKey(marketAddr, big.NewInt(1))
	assert.Equal(t, "AlreadyListed", ErrorCode(&AlreadyListedError{Key: key}))
	assert.Equal(t, "PriceNotMet", ErrorCode(&PriceNotMetError{Key: key, Price: big.NewInt(2), Offered: big.NewInt(1)}))
	assert.Equal(t, "TransferFailed", ErrorCode(&TransferFailedError{Account: user, Amount: big.NewInt(1), Err: ErrNoProceeds}))
	assert.Equal(t, "RevertFailed", ErrorCode(journal.Failed(
		&TransferFailedError{Account: user, Amount: big.NewInt(1), Err: assert.AnError}, assert.AnError)))
	assert.Equal(t, "", ErrorCode(assert.AnError))
}

package marketplace

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKey identifies one sellable asset instance: a collection address plus a token id.
type AssetKey struct {
	Collection common.Address
	TokenID    *big.Int
}

// NewAssetKey builds an AssetKey, copying tokenID so the caller may reuse it.
func NewAssetKey(collection common.Address, tokenID *big.Int) AssetKey {
	id := new(big.Int)
	if tokenID != nil {
		id.Set(tokenID)
	}
	return AssetKey{Collection: collection, TokenID: id}
}

// ParseAssetKey parses a hex collection address and a base-10 token id.
func ParseAssetKey(collection, tokenID string) (AssetKey, error) {
	if !common.IsHexAddress(collection) {
		return AssetKey{}, fmt.Errorf("invalid collection address %q", collection)
	}
	id, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok || id.Sign() < 0 {
		return AssetKey{}, fmt.Errorf("invalid token id %q", tokenID)
	}
	return AssetKey{Collection: common.HexToAddress(collection), TokenID: id}, nil
}

func (k AssetKey) tokenID() *big.Int {
	if k.TokenID == nil {
		return new(big.Int)
	}
	return k.TokenID
}

// String renders the key as "<collection>/<token id>". Storage backends use it as the map key.
func (k AssetKey) String() string {
	return k.Collection.Hex() + "/" + k.tokenID().String()
}

// Listing is one active fixed-price offer. A missing entry means "not listed".
type Listing struct {
	Price  *big.Int
	Seller common.Address
}

func (l Listing) clone() Listing {
	return Listing{Price: cloneAmount(l.Price), Seller: l.Seller}
}

// ListedItem pairs an active listing with its key.
type ListedItem struct {
	Key     AssetKey
	Listing Listing
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Event is a ledger state transition announced to observers.
type Event interface {
	EventName() string
}

// ItemListed is emitted by ListItem and, with the new price, by UpdateListing.
type ItemListed struct {
	Seller common.Address
	Key    AssetKey
	Price  *big.Int
}

func (ItemListed) EventName() string { return "ItemListed" }

// ItemCanceled is emitted by CancelListing.
type ItemCanceled struct {
	Seller common.Address
	Key    AssetKey
}

func (ItemCanceled) EventName() string { return "ItemCanceled" }

// ItemBought is emitted by BuyItem once the asset has moved to the buyer.
type ItemBought struct {
	Buyer common.Address
	Key   AssetKey
	Price *big.Int
}

func (ItemBought) EventName() string { return "ItemBought" }

// Envelope wraps an event with its id and emission time.
type Envelope struct {
	ID        string
	EmittedAt time.Time
	Event     Event
}

type envelopeJSON struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	EmittedAt  time.Time `json:"emitted_at"`
	Seller     string    `json:"seller,omitempty"`
	Buyer      string    `json:"buyer,omitempty"`
	Collection string    `json:"collection"`
	TokenID    string    `json:"token_id"`
	Price      string    `json:"price,omitempty"`
}

// MarshalJSON flattens the event into the wire shape consumed by indexers and the UI stream.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := envelopeJSON{ID: e.ID, EmittedAt: e.EmittedAt}
	var key AssetKey
	switch ev := e.Event.(type) {
	case ItemListed:
		out.Seller = ev.Seller.Hex()
		out.Price = cloneAmount(ev.Price).String()
		key = ev.Key
	case ItemCanceled:
		out.Seller = ev.Seller.Hex()
		key = ev.Key
	case ItemBought:
		out.Buyer = ev.Buyer.Hex()
		out.Price = cloneAmount(ev.Price).String()
		key = ev.Key
	default:
		return nil, fmt.Errorf("unknown event type %T", e.Event)
	}
	out.Event = e.Event.EventName()
	out.Collection = key.Collection.Hex()
	out.TokenID = key.tokenID().String()
	return json.Marshal(out)
}

package database

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"nft_marketplace/internal/marketplace"
)

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", s)
	}
	return v, nil
}

func decodeListing(collection, tokenID, price, seller string) (marketplace.ListedItem, error) {
	key, err := marketplace.ParseAssetKey(collection, tokenID)
	if err != nil {
		return marketplace.ListedItem{}, err
	}
	p, err := parseAmount(price)
	if err != nil {
		return marketplace.ListedItem{}, err
	}
	if !common.IsHexAddress(seller) {
		return marketplace.ListedItem{}, fmt.Errorf("invalid stored seller %q", seller)
	}
	return marketplace.ListedItem{
		Key:     key,
		Listing: marketplace.Listing{Price: p, Seller: common.HexToAddress(seller)},
	}, nil
}

func tokenText(key marketplace.AssetKey) string {
	if key.TokenID == nil {
		return "0"
	}
	return key.TokenID.String()
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// addrText stores addresses as lowercase hex so text order matches byte order.
func addrText(a common.Address) string {
	return strings.ToLower(a.Hex())
}

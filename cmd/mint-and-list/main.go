// Command mint-and-list mints a token on a running marketplace's development chain,
// approves the marketplace for it and lists it.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"resty.dev/v3"

	"nft_marketplace/api"
	"nft_marketplace/internal/units"
)

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func main() {
	apiURL := pflag.String("api", "http://localhost:8081", "marketplace base URL")
	account := pflag.String("account", "0xf39Fd6e51aad88F6F4Ce6aB8827279cffFb92266", "account that mints and lists")
	collection := pflag.String("collection", "", "existing collection address; a new one is deployed when empty")
	price := pflag.String("price", "0.01", "listing price in ether")
	timeout := pflag.Duration("timeout", 10*time.Second, "per-request timeout")
	pflag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := run(context.Background(), logger, *apiURL, *account, *collection, *price, *timeout); err != nil {
		logger.Error("mint-and-list failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *zap.Logger, apiURL, account, collection, price string, timeout time.Duration) error {
	wei, err := units.ToWei(price)
	if err != nil {
		return err
	}

	client := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(timeout).
		SetHeader(api.AccountHeader, account).
		SetHeader("Content-Type", "application/json")
	defer client.Close()

	var info struct {
		Marketplace string `json:"marketplace"`
	}
	if err := call(ctx, client, "GET", "/info", nil, &info); err != nil {
		return err
	}

	if collection == "" {
		var deployed struct {
			Collection string `json:"collection"`
		}
		body := map[string]string{"name": "Dogie", "symbol": "DOG", "token_uri": "ipfs://dogie"}
		if err := call(ctx, client, "POST", "/dev/collections", body, &deployed); err != nil {
			return err
		}
		collection = deployed.Collection
		logger.Info("collection deployed", zap.String("collection", collection))
	}

	logger.Info("minting NFT...")
	var minted struct {
		TokenID string `json:"token_id"`
	}
	if err := call(ctx, client, "POST", "/dev/collections/"+collection+"/mint", nil, &minted); err != nil {
		return err
	}

	logger.Info("approving NFT...", zap.String("token_id", minted.TokenID))
	approvePath := fmt.Sprintf("/dev/collections/%s/tokens/%s/approve", collection, minted.TokenID)
	if err := call(ctx, client, "POST", approvePath, map[string]string{"to": info.Marketplace}, nil); err != nil {
		return err
	}

	logger.Info("listing NFT...")
	var listed struct {
		Price    string `json:"price"`
		PriceEth string `json:"price_eth"`
	}
	body := map[string]string{"collection": collection, "token_id": minted.TokenID, "price": wei.String()}
	if err := call(ctx, client, "POST", "/listings", body, &listed); err != nil {
		return err
	}

	logger.Info("listed",
		zap.String("collection", collection),
		zap.String("token_id", minted.TokenID),
		zap.String("price", listed.Price),
		zap.String("price_eth", listed.PriceEth))
	return nil
}

func call(ctx context.Context, client *resty.Client, method, path string, body, result any) error {
	req := client.R().SetContext(ctx).SetError(&apiError{})
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	res, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if res.IsError() {
		if e, ok := res.Error().(*apiError); ok && e.Error != "" {
			return fmt.Errorf("%s %s: %d %s: %s", method, path, res.StatusCode(), e.Code, e.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, res.StatusCode())
	}
	return nil
}

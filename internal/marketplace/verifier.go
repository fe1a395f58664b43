package marketplace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AssetOwnershipProvider is the system of record for asset ownership and transfer approvals.
// Implementations record how to undo every change in the journal carried by ctx
// (see journal.Run), so a failed marketplace operation reverts its asset transfers.
type AssetOwnershipProvider interface {
	OwnerOf(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error)
	GetApproved(ctx context.Context, collection common.Address, tokenID *big.Int) (common.Address, error)
	// TransferFrom moves tokenID from -> to on behalf of operator. It may call back into the marketplace.
	TransferFrom(ctx context.Context, operator, from, to, collection common.Address, tokenID *big.Int) error
}

// Verifier checks asset control against the ownership provider. It never writes.
type Verifier struct {
	assets AssetOwnershipProvider
	self   common.Address
}

// NewVerifier creates a Verifier for the marketplace account self.
func NewVerifier(assets AssetOwnershipProvider, self common.Address) *Verifier {
	return &Verifier{assets: assets, self: self}
}

// VerifyOwner fails with NotOwnerError unless caller currently owns the asset.
func (v *Verifier) VerifyOwner(ctx context.Context, caller common.Address, key AssetKey) error {
	owner, err := v.assets.OwnerOf(ctx, key.Collection, key.tokenID())
	if err != nil {
		return fmt.Errorf("owner of %s: %w", key, err)
	}
	if owner != caller {
		return &NotOwnerError{Key: key, Caller: caller}
	}
	return nil
}

// VerifyApproved fails with NotApprovedError unless the marketplace may transfer the asset.
func (v *Verifier) VerifyApproved(ctx context.Context, key AssetKey) error {
	approved, err := v.assets.GetApproved(ctx, key.Collection, key.tokenID())
	if err != nil {
		return fmt.Errorf("approval of %s: %w", key, err)
	}
	if approved != v.self {
		return &NotApprovedError{Key: key}
	}
	return nil
}

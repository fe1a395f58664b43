package marketplace

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nft_marketplace/internal/journal"
)

// Error kinds. Typed errors below match these through errors.Is and carry their payload for errors.As.
var (
	ErrPriceMustBeAboveZero      = errors.New("price must be above zero")
	ErrAlreadyListed             = errors.New("already listed")
	ErrNotListed                 = errors.New("not listed")
	ErrNotOwner                  = errors.New("not owner")
	ErrNotApprovedForMarketplace = errors.New("not approved for marketplace")
	ErrPriceNotMet               = errors.New("price not met")
	ErrNoProceeds                = errors.New("no proceeds")
	ErrTransferFailed            = errors.New("transfer failed")
	ErrReentrantCall             = errors.New("reentrant call")
	ErrInvalidAmount             = errors.New("amount must be a non-negative integer")
)

// AlreadyListedError is returned by ListItem when the key already has an active listing.
type AlreadyListedError struct {
	Key AssetKey
}

func (e *AlreadyListedError) Error() string {
	return fmt.Sprintf("already listed: %s", e.Key)
}

func (e *AlreadyListedError) Is(target error) bool { return target == ErrAlreadyListed }

// NotListedError is returned when an operation needs a listing that does not exist.
type NotListedError struct {
	Key AssetKey
}

func (e *NotListedError) Error() string {
	return fmt.Sprintf("not listed: %s", e.Key)
}

func (e *NotListedError) Is(target error) bool { return target == ErrNotListed }

// NotOwnerError is returned when Caller neither owns the asset nor created its listing.
type NotOwnerError struct {
	Key    AssetKey
	Caller common.Address
}

func (e *NotOwnerError) Error() string {
	return fmt.Sprintf("not owner: %s is not the owner of %s", e.Caller.Hex(), e.Key)
}

func (e *NotOwnerError) Is(target error) bool { return target == ErrNotOwner }

// NotApprovedError is returned when the marketplace is not the approved operator of the asset.
type NotApprovedError struct {
	Key AssetKey
}

func (e *NotApprovedError) Error() string {
	return fmt.Sprintf("not approved for marketplace: %s", e.Key)
}

func (e *NotApprovedError) Is(target error) bool { return target == ErrNotApprovedForMarketplace }

// PriceNotMetError reports the listing price the payment fell short of.
type PriceNotMetError struct {
	Key     AssetKey
	Price   *big.Int
	Offered *big.Int
}

func (e *PriceNotMetError) Error() string {
	return fmt.Sprintf("price not met: %s costs %s, offered %s", e.Key, cloneAmount(e.Price), cloneAmount(e.Offered))
}

func (e *PriceNotMetError) Is(target error) bool { return target == ErrPriceNotMet }

// NoProceedsError is returned by WithdrawProceeds for an empty balance.
type NoProceedsError struct {
	Account common.Address
}

func (e *NoProceedsError) Error() string {
	return fmt.Sprintf("no proceeds for %s", e.Account.Hex())
}

func (e *NoProceedsError) Is(target error) bool { return target == ErrNoProceeds }

// TransferFailedError wraps a failed funds transfer to or from Account.
type TransferFailedError struct {
	Account common.Address
	Amount  *big.Int
	Err     error
}

func (e *TransferFailedError) Error() string {
	return fmt.Sprintf("transfer failed: %s of %s: %v", cloneAmount(e.Amount), e.Account.Hex(), e.Err)
}

func (e *TransferFailedError) Is(target error) bool { return target == ErrTransferFailed }

func (e *TransferFailedError) Unwrap() error { return e.Err }

// ErrorCode names the outermost error kind of err, or "" when err is not a marketplace error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, journal.ErrRevertFailed):
		return "RevertFailed"
	case errors.Is(err, ErrTransferFailed):
		return "TransferFailed"
	case errors.Is(err, ErrPriceMustBeAboveZero):
		return "PriceMustBeAboveZero"
	case errors.Is(err, ErrAlreadyListed):
		return "AlreadyListed"
	case errors.Is(err, ErrNotListed):
		return "NotListed"
	case errors.Is(err, ErrNotOwner):
		return "NotOwner"
	case errors.Is(err, ErrNotApprovedForMarketplace):
		return "NotApprovedForMarketplace"
	case errors.Is(err, ErrPriceNotMet):
		return "PriceNotMet"
	case errors.Is(err, ErrNoProceeds):
		return "NoProceeds"
	case errors.Is(err, ErrReentrantCall):
		return "ReentrantCall"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	}
	return ""
}

package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"nft_marketplace/internal/journal"
)

// FundsTransferer moves native currency between accounts. It may call back into the
// marketplace, and records how to undo each transfer in the journal carried by ctx.
type FundsTransferer interface {
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}

// EventSink consumes committed events in emission order.
type EventSink interface {
	Emit(ctx context.Context, env Envelope) error
}

// Options configures a Service.
type Options struct {
	// Address is the marketplace's own account: the approved operator for listed assets
	// and the holder of escrowed payments.
	Address common.Address
	// ReentrancyGuard rejects a nested BuyItem or WithdrawProceeds with ErrReentrantCall.
	ReentrancyGuard bool
}

// Service runs the listing, escrow and proceeds operations on a Storage backend.
//
// Top-level calls are serialized. A call that reaches external code (asset or funds
// transfer) has already applied its ledger effects, so a call re-entering through the
// context it handed out observes a consistent state. Any failure reverts every ledger
// write made by the failing call, including writes of calls nested inside it.
type Service struct {
	mu       sync.Mutex
	opts     Options
	storage  Storage
	assets   AssetOwnershipProvider
	funds    FundsTransferer
	verifier *Verifier
	sink     EventSink
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(opts Options, storage Storage, assets AssetOwnershipProvider, funds FundsTransferer, sink EventSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &Service{
		opts:     opts,
		storage:  storage,
		assets:   assets,
		funds:    funds,
		verifier: NewVerifier(assets, opts.Address),
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// Address returns the marketplace account.
func (s *Service) Address() common.Address {
	return s.opts.Address
}

// ListItem creates a listing for an asset the caller owns and has approved the marketplace for.
func (s *Service) ListItem(ctx context.Context, caller common.Address, key AssetKey, price *big.Int) error {
	if price == nil || price.Sign() <= 0 {
		return ErrPriceMustBeAboveZero
	}
	key = NewAssetKey(key.Collection, key.TokenID)
	price = cloneAmount(price)

	return s.run(ctx, "list_item", func(ctx context.Context, f *frame, j *journal.Journal) error {
		if err := s.verifier.VerifyOwner(ctx, caller, key); err != nil {
			return err
		}
		if _, listed, err := s.storage.GetListing(ctx, key); err != nil {
			return fmt.Errorf("read listing: %w", err)
		} else if listed {
			return &AlreadyListedError{Key: key}
		}
		if err := s.verifier.VerifyApproved(ctx, key); err != nil {
			return err
		}
		if err := s.putListing(ctx, j, key, Listing{Price: price, Seller: caller}); err != nil {
			return err
		}
		s.emit(ctx, j, ItemListed{Seller: caller, Key: key, Price: price})
		return nil
	})
}

// UpdateListing replaces the price of the caller's own listing. It announces the change
// with ItemListed, the same event as the initial listing.
func (s *Service) UpdateListing(ctx context.Context, caller common.Address, key AssetKey, newPrice *big.Int) error {
	key = NewAssetKey(key.Collection, key.TokenID)

	return s.run(ctx, "update_listing", func(ctx context.Context, f *frame, j *journal.Journal) error {
		listing, err := s.sellerListing(ctx, caller, key)
		if err != nil {
			return err
		}
		if newPrice == nil || newPrice.Sign() <= 0 {
			return ErrPriceMustBeAboveZero
		}
		price := cloneAmount(newPrice)
		if err := s.putListing(ctx, j, key, Listing{Price: price, Seller: listing.Seller}); err != nil {
			return err
		}
		s.emit(ctx, j, ItemListed{Seller: listing.Seller, Key: key, Price: price})
		return nil
	})
}

// CancelListing removes the caller's own listing.
func (s *Service) CancelListing(ctx context.Context, caller common.Address, key AssetKey) error {
	key = NewAssetKey(key.Collection, key.TokenID)

	return s.run(ctx, "cancel_listing", func(ctx context.Context, f *frame, j *journal.Journal) error {
		listing, err := s.sellerListing(ctx, caller, key)
		if err != nil {
			return err
		}
		if err := s.deleteListing(ctx, j, key); err != nil {
			return err
		}
		s.emit(ctx, j, ItemCanceled{Seller: listing.Seller, Key: key})
		return nil
	})
}

// BuyItem completes a sale for payment, which must already be held by the marketplace
// (see Purchase). Overpayment is credited to the seller in full.
//
// The seller's proceeds are credited and the listing removed before the asset transfer,
// which is the only step that runs code outside the marketplace.
func (s *Service) BuyItem(ctx context.Context, caller common.Address, key AssetKey, payment *big.Int) error {
	if payment == nil || payment.Sign() < 0 {
		return ErrInvalidAmount
	}
	key = NewAssetKey(key.Collection, key.TokenID)
	payment = cloneAmount(payment)

	return s.run(ctx, "buy_item", func(ctx context.Context, f *frame, j *journal.Journal) error {
		release, err := s.guard(f)
		if err != nil {
			return err
		}
		defer release()

		listing, listed, err := s.storage.GetListing(ctx, key)
		if err != nil {
			return fmt.Errorf("read listing: %w", err)
		}
		if !listed {
			return &NotListedError{Key: key}
		}
		if payment.Cmp(listing.Price) < 0 {
			return &PriceNotMetError{Key: key, Price: listing.Price, Offered: payment}
		}

		if err := s.creditProceeds(ctx, j, listing.Seller, payment); err != nil {
			return err
		}
		if err := s.deleteListing(ctx, j, key); err != nil {
			return err
		}
		if err := s.assets.TransferFrom(ctx, s.opts.Address, listing.Seller, caller, key.Collection, key.TokenID); err != nil {
			return fmt.Errorf("transfer %s to %s: %w", key, caller.Hex(), err)
		}

		s.emit(ctx, j, ItemBought{Buyer: caller, Key: key, Price: listing.Price})
		return nil
	})
}

// Purchase pays value from buyer into the marketplace account and runs BuyItem with it.
// The payment is refunded if the sale fails.
func (s *Service) Purchase(ctx context.Context, buyer common.Address, key AssetKey, value *big.Int) error {
	if value == nil || value.Sign() < 0 {
		return ErrInvalidAmount
	}
	value = cloneAmount(value)

	return s.run(ctx, "purchase", func(ctx context.Context, f *frame, j *journal.Journal) error {
		if err := s.funds.Transfer(ctx, buyer, s.opts.Address, value); err != nil {
			return &TransferFailedError{Account: buyer, Amount: value, Err: err}
		}
		return s.BuyItem(ctx, buyer, key, value)
	})
}

// WithdrawProceeds pays the caller's whole balance out and returns the amount paid.
// The balance is zeroed before the funds transfer; a failed transfer restores it.
func (s *Service) WithdrawProceeds(ctx context.Context, caller common.Address) (*big.Int, error) {
	var withdrawn *big.Int
	err := s.run(ctx, "withdraw_proceeds", func(ctx context.Context, f *frame, j *journal.Journal) error {
		release, err := s.guard(f)
		if err != nil {
			return err
		}
		defer release()

		amount, err := s.storage.GetProceeds(ctx, caller)
		if err != nil {
			return fmt.Errorf("read proceeds: %w", err)
		}
		if amount.Sign() <= 0 {
			return &NoProceedsError{Account: caller}
		}
		if err := s.setProceeds(ctx, j, caller, new(big.Int)); err != nil {
			return err
		}
		if err := s.funds.Transfer(ctx, s.opts.Address, caller, amount); err != nil {
			return &TransferFailedError{Account: caller, Amount: amount, Err: err}
		}
		withdrawn = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// GetListing returns the active listing for key, or a zero Listing (price 0, zero seller).
func (s *Service) GetListing(ctx context.Context, key AssetKey) (Listing, error) {
	var listing Listing
	err := s.view(ctx, func(ctx context.Context) error {
		l, listed, err := s.storage.GetListing(ctx, key)
		if err != nil {
			return err
		}
		if !listed {
			l = Listing{Price: new(big.Int)}
		}
		listing = l
		return nil
	})
	return listing, err
}

// GetProceeds returns the withdrawable balance of account.
func (s *Service) GetProceeds(ctx context.Context, account common.Address) (*big.Int, error) {
	var amount *big.Int
	err := s.view(ctx, func(ctx context.Context) error {
		a, err := s.storage.GetProceeds(ctx, account)
		amount = a
		return err
	})
	return amount, err
}

// Listings returns every active listing.
func (s *Service) Listings(ctx context.Context) ([]ListedItem, error) {
	var items []ListedItem
	err := s.view(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.storage.Listings(ctx)
		return err
	})
	return items, err
}

// run executes fn as one atomic operation. A top-level call takes the service lock, runs
// inside a storage transaction and publishes its events once the outermost journal
// commits. A nested call joins the caller's frame and journal. On failure every change
// recorded in the journal since fn started is undone, including changes made by the asset
// and funds providers and by calls nested inside fn.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, f *frame, j *journal.Journal) error) error {
	if f, nested := s.frameFrom(ctx); nested {
		err := journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
			return fn(ctx, f, j)
		})
		if err != nil {
			s.logger.Debug("nested operation rejected", zap.String("op", op), zap.Error(err))
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f := &frame{}
	defer f.done.Store(true)
	ctx = context.WithValue(ctx, frameKey{svc: s}, f)
	ctx, j, root := journal.Begin(ctx)
	snap := j.Snapshot()

	err := s.storage.WithTx(ctx, func(ctx context.Context) error {
		return journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
			return fn(ctx, f, j)
		})
	})
	if err != nil {
		// a failed commit leaves steps behind that the inner run did not revert
		err = journal.Failed(err, j.RevertTo(context.WithoutCancel(ctx), snap))
		if root {
			_ = j.Abort(context.WithoutCancel(ctx))
		}
		if errors.Is(err, journal.ErrRevertFailed) {
			s.logger.Error("operation rejected and not fully reverted", zap.String("op", op), zap.Error(err))
		} else {
			s.logger.Info("operation rejected", zap.String("op", op), zap.Error(err))
		}
		return err
	}

	s.logger.Info("operation committed", zap.String("op", op))
	if root {
		j.Commit()
	}
	return nil
}

func (s *Service) view(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := s.frameFrom(ctx); !nested {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(ctx)
}

func (s *Service) publish(ctx context.Context, env Envelope) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Emit(ctx, env); err != nil {
		s.logger.Warn("failed to emit event",
			zap.String("event", env.Event.EventName()),
			zap.String("event_id", env.ID),
			zap.Error(err),
		)
	}
}

// guard marks the frame busy for the duration of a guarded operation when the
// re-entrancy guard is enabled.
func (s *Service) guard(f *frame) (func(), error) {
	if !s.opts.ReentrancyGuard {
		return func() {}, nil
	}
	if f.busy {
		return nil, ErrReentrantCall
	}
	f.busy = true
	return func() { f.busy = false }, nil
}

// emit queues ev until the outermost journal commits. Reverting the step that emitted it
// drops it.
func (s *Service) emit(ctx context.Context, j *journal.Journal, ev Event) {
	env := Envelope{
		ID:        uuid.NewString(),
		EmittedAt: s.now().UTC(),
		Event:     ev,
	}
	j.OnCommit(func() { s.publish(ctx, env) })
}

func (s *Service) sellerListing(ctx context.Context, caller common.Address, key AssetKey) (Listing, error) {
	listing, listed, err := s.storage.GetListing(ctx, key)
	if err != nil {
		return Listing{}, fmt.Errorf("read listing: %w", err)
	}
	if !listed {
		return Listing{}, &NotListedError{Key: key}
	}
	if listing.Seller != caller {
		return Listing{}, &NotOwnerError{Key: key, Caller: caller}
	}
	return listing, nil
}

func (s *Service) putListing(ctx context.Context, j *journal.Journal, key AssetKey, listing Listing) error {
	prev, existed, err := s.storage.GetListing(ctx, key)
	if err != nil {
		return fmt.Errorf("read listing: %w", err)
	}
	if err := s.storage.PutListing(ctx, key, listing); err != nil {
		return fmt.Errorf("store listing: %w", err)
	}
	j.Record(func(ctx context.Context) error {
		if existed {
			return s.storage.PutListing(ctx, key, prev)
		}
		return s.storage.DeleteListing(ctx, key)
	})
	return nil
}

func (s *Service) deleteListing(ctx context.Context, j *journal.Journal, key AssetKey) error {
	prev, existed, err := s.storage.GetListing(ctx, key)
	if err != nil {
		return fmt.Errorf("read listing: %w", err)
	}
	if !existed {
		return nil
	}
	if err := s.storage.DeleteListing(ctx, key); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	j.Record(func(ctx context.Context) error {
		return s.storage.PutListing(ctx, key, prev)
	})
	return nil
}

func (s *Service) creditProceeds(ctx context.Context, j *journal.Journal, account common.Address, amount *big.Int) error {
	balance, err := s.storage.GetProceeds(ctx, account)
	if err != nil {
		return fmt.Errorf("read proceeds: %w", err)
	}
	return s.setProceeds(ctx, j, account, new(big.Int).Add(balance, amount))
}

func (s *Service) setProceeds(ctx context.Context, j *journal.Journal, account common.Address, amount *big.Int) error {
	prev, err := s.storage.GetProceeds(ctx, account)
	if err != nil {
		return fmt.Errorf("read proceeds: %w", err)
	}
	if err := s.storage.SetProceeds(ctx, account, amount); err != nil {
		return fmt.Errorf("store proceeds: %w", err)
	}
	j.Record(func(ctx context.Context) error {
		return s.storage.SetProceeds(ctx, account, prev)
	})
	return nil
}

// Package bank keeps native-currency balances for the development chain and provides the
// funds transfer primitive used by the marketplace.
package bank

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"nft_marketplace/internal/journal"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be a non-negative integer")
)

// ReceiveHook runs after funds land on the hooked account. Returning an error rejects the
// payment and rolls the transfer back. Hooks may call into other services; changes they
// make with the context they are handed are rolled back with it.
type ReceiveHook func(ctx context.Context, from common.Address, amount *big.Int) error

// Ledger holds account balances.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	hooks    map[common.Address]ReceiveHook
}

// NewLedger creates a Ledger where every account starts at zero.
func NewLedger() *Ledger {
	return &Ledger{
		balances: map[common.Address]*big.Int{},
		hooks:    map[common.Address]ReceiveHook{},
	}
}

// Deposit mints amount into account.
func (l *Ledger) Deposit(ctx context.Context, account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	amount = new(big.Int).Set(amount)
	return journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		l.mu.Lock()
		l.add(account, amount)
		l.mu.Unlock()
		j.Record(func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			return l.debit(account, amount)
		})
		return nil
	})
}

// BalanceOf returns the balance of account.
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

// Transfer moves amount from -> to. The receiver hook of to runs without the ledger lock
// held. If it fails, the transfer and everything the hook did through the journal in ctx
// are undone and the hook error is returned wrapped.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	amount = new(big.Int).Set(amount)

	return journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		l.mu.Lock()
		if err := l.move(from, to, amount); err != nil {
			l.mu.Unlock()
			return err
		}
		hook := l.hooks[to]
		l.mu.Unlock()
		j.Record(func(context.Context) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			if err := l.move(to, from, amount); err != nil {
				return fmt.Errorf("undo transfer of %s from %s: %w", amount, from.Hex(), err)
			}
			return nil
		})

		if hook == nil {
			return nil
		}
		if err := hook(ctx, from, new(big.Int).Set(amount)); err != nil {
			return fmt.Errorf("receiver %s rejected payment: %w", to.Hex(), err)
		}
		return nil
	})
}

// OnReceive installs hook for account; nil removes it.
func (l *Ledger) OnReceive(account common.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, account)
		return
	}
	l.hooks[account] = hook
}

// move fails without touching either balance when from holds less than amount.
func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.add(to, amount)
	return nil
}

func (l *Ledger) debit(account common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance := l.balances[account]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has less than %s", ErrInsufficientBalance, account.Hex(), amount)
	}
	balance.Sub(balance, amount)
	return nil
}

func (l *Ledger) add(account common.Address, delta *big.Int) {
	b, ok := l.balances[account]
	if !ok {
		b = new(big.Int)
		l.balances[account] = b
	}
	b.Add(b, delta)
}

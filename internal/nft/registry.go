// Package nft is an in-process registry of non-fungible token collections. It tracks
// ownership and single-token transfer approvals and serves as the asset ownership
// provider of the development chain.
package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"nft_marketplace/internal/journal"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrNonexistentToken  = errors.New("nonexistent token")
	ErrNotAuthorized     = errors.New("caller is not token owner or approved")
	ErrIncorrectOwner    = errors.New("transfer from incorrect owner")
	ErrZeroAddress       = errors.New("zero address")
)

// ReceiveHook runs after a token lands on the hooked account. Returning an error rejects the
// transfer and rolls it back, together with whatever the hook changed through the context it
// was handed. Hooks are untrusted code and may call into other services.
type ReceiveHook func(ctx context.Context, operator, from, collection common.Address, tokenID *big.Int) error

// Token describes one minted token.
type Token struct {
	Owner    common.Address
	Approved common.Address
	URI      string
}

// Info describes a deployed collection.
type Info struct {
	Address common.Address
	Name    string
	Symbol  string
	Minted  uint64
}

type collection struct {
	name     string
	symbol   string
	tokenURI string
	next     uint64
	owners   map[string]common.Address
	approved map[string]common.Address
}

// Registry holds deployed collections.
type Registry struct {
	mu          sync.Mutex
	collections map[common.Address]*collection
	nonces      map[common.Address]uint64
	hooks       map[common.Address]ReceiveHook
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: map[common.Address]*collection{},
		nonces:      map[common.Address]uint64{},
		hooks:       map[common.Address]ReceiveHook{},
	}
}

// Deploy creates a collection whose address derives from deployer and its deploy count.
// Every token of the collection shares tokenURI.
func (r *Registry) Deploy(ctx context.Context, deployer common.Address, name, symbol, tokenURI string) (common.Address, error) {
	var addr common.Address
	err := journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		nonce := r.nonces[deployer]
		addr = crypto.CreateAddress(deployer, nonce)
		r.nonces[deployer] = nonce + 1
		r.collections[addr] = &collection{
			name:     name,
			symbol:   symbol,
			tokenURI: tokenURI,
			owners:   map[string]common.Address{},
			approved: map[string]common.Address{},
		}
		j.Record(func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.collections, addr)
			r.nonces[deployer] = nonce
			return nil
		})
		return nil
	})
	return addr, err
}

// Collection returns the description of a deployed collection.
func (r *Registry) Collection(_ context.Context, coll common.Address) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[coll]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownCollection, coll.Hex())
	}
	return Info{Address: coll, Name: c.name, Symbol: c.symbol, Minted: c.next}, nil
}

// Mint creates the next token of the collection, owned by to. Token ids start at 0.
func (r *Registry) Mint(ctx context.Context, coll, to common.Address) (*big.Int, error) {
	if to == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	var id *big.Int
	err := journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		c, ok := r.collections[coll]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, coll.Hex())
		}
		id = new(big.Int).SetUint64(c.next)
		key := id.String()
		c.next++
		c.owners[key] = to
		j.Record(func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(c.owners, key)
			delete(c.approved, key)
			if c.next == id.Uint64()+1 {
				c.next--
			}
			return nil
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// Approve lets to transfer tokenID. caller must be the owner or the current approval holder.
func (r *Registry) Approve(ctx context.Context, caller, coll common.Address, tokenID *big.Int, to common.Address) error {
	return journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		r.mu.Lock()
		defer r.mu.Unlock()

		c, owner, err := r.token(coll, tokenID)
		if err != nil {
			return err
		}
		id := tokenID.String()
		prev := c.approved[id]
		if caller != owner && caller != prev {
			return ErrNotAuthorized
		}
		setApproval(c, id, to)
		j.Record(func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			setApproval(c, id, prev)
			return nil
		})
		return nil
	})
}

// OwnerOf returns the owner of tokenID.
func (r *Registry) OwnerOf(_ context.Context, coll common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, owner, err := r.token(coll, tokenID)
	return owner, err
}

// GetApproved returns the account approved for tokenID, or the zero address.
func (r *Registry) GetApproved(_ context.Context, coll common.Address, tokenID *big.Int) (common.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, _, err := r.token(coll, tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return c.approved[tokenID.String()], nil
}

// Token returns owner, approval and URI of tokenID.
func (r *Registry) Token(_ context.Context, coll common.Address, tokenID *big.Int) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, owner, err := r.token(coll, tokenID)
	if err != nil {
		return Token{}, err
	}
	return Token{Owner: owner, Approved: c.approved[tokenID.String()], URI: c.tokenURI}, nil
}

// TransferFrom moves tokenID from -> to on behalf of operator, clearing its approval.
// The receiver hook of to, if any, runs without the registry lock held. If it fails, the
// transfer and everything the hook did through the journal in ctx are undone.
func (r *Registry) TransferFrom(ctx context.Context, operator, from, to, coll common.Address, tokenID *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	return journal.Run(ctx, func(ctx context.Context, j *journal.Journal) error {
		r.mu.Lock()
		c, owner, err := r.token(coll, tokenID)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		id := tokenID.String()
		if owner != from {
			r.mu.Unlock()
			return ErrIncorrectOwner
		}
		approved := c.approved[id]
		if operator != owner && operator != approved {
			r.mu.Unlock()
			return ErrNotAuthorized
		}
		delete(c.approved, id)
		c.owners[id] = to
		hook := r.hooks[to]
		r.mu.Unlock()

		j.Record(func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c.owners[id] != to {
				return fmt.Errorf("undo transfer of %s/%s: %w", coll.Hex(), id, ErrIncorrectOwner)
			}
			c.owners[id] = from
			setApproval(c, id, approved)
			return nil
		})

		if hook == nil {
			return nil
		}
		if err := hook(ctx, operator, from, coll, new(big.Int).Set(tokenID)); err != nil {
			return fmt.Errorf("receiver %s rejected token: %w", to.Hex(), err)
		}
		return nil
	})
}

// OnReceive installs hook for account; nil removes it.
func (r *Registry) OnReceive(account common.Address, hook ReceiveHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook == nil {
		delete(r.hooks, account)
		return
	}
	r.hooks[account] = hook
}

func setApproval(c *collection, id string, to common.Address) {
	if to == (common.Address{}) {
		delete(c.approved, id)
		return
	}
	c.approved[id] = to
}

func (r *Registry) token(coll common.Address, tokenID *big.Int) (*collection, common.Address, error) {
	c, ok := r.collections[coll]
	if !ok {
		return nil, common.Address{}, fmt.Errorf("%w: %s", ErrUnknownCollection, coll.Hex())
	}
	if tokenID == nil {
		return nil, common.Address{}, ErrNonexistentToken
	}
	owner, ok := c.owners[tokenID.String()]
	if !ok {
		return nil, common.Address{}, fmt.Errorf("%w: %s", ErrNonexistentToken, tokenID)
	}
	return c, owner, nil
}

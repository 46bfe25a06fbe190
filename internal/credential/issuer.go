package credential

import (
	"context"
	"errors"
	"fmt"

	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrAlreadyMinted      = errors.New("credential already minted")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
)

type Metadata struct {
	Name   string
	Symbol string
	URI    string
}

// Item is a single non-fungible credential belonging to a collection.
type Item struct {
	Address       solana.PublicKey
	Owner         solana.PublicKey
	Collection    solana.PublicKey
	RoundID       uint64
	SequenceIndex uint64
	Metadata      Metadata
}

// Issuer mints credentials into storage. Like the token ledger it writes
// through the handle it is given.
type Issuer struct{}

func NewIssuer() *Issuer {
	return &Issuer{}
}

func (i *Issuer) CreateCollection(ctx context.Context, tx storage.Storage, address solana.PublicKey, roundID uint64, authority solana.PublicKey, metadata Metadata) error {
	err := tx.CreateCollection(ctx, &storage.Collection{
		Address:   address.String(),
		RoundID:   roundID,
		Authority: authority.String(),
		Name:      metadata.Name,
		Symbol:    metadata.Symbol,
		URI:       metadata.URI,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("collection %s: %w", address, ErrCollectionExists)
	}
	if err != nil {
		return err
	}

	logger.Debug("collection created", zap.String("collection", address.String()), zap.Uint64("round", roundID))
	return nil
}

// Mint creates the credential and verifies it as a member of its collection.
func (i *Issuer) Mint(ctx context.Context, tx storage.Storage, item Item) error {
	collection, err := tx.GetCollection(ctx, item.Collection.String())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("collection %s: %w", item.Collection, ErrCollectionNotFound)
	}
	if err != nil {
		return err
	}

	err = tx.CreateTicket(ctx, &storage.Ticket{
		Address:       item.Address.String(),
		RoundID:       item.RoundID,
		SequenceIndex: item.SequenceIndex,
		Owner:         item.Owner.String(),
		Collection:    collection.Address,
		Verified:      collection.RoundID == item.RoundID,
		Name:          item.Metadata.Name,
		Symbol:        item.Metadata.Symbol,
		URI:           item.Metadata.URI,
	})
	if errors.Is(err, storage.ErrAlreadyExists) {
		return fmt.Errorf("credential %s: %w", item.Address, ErrAlreadyMinted)
	}
	if err != nil {
		return err
	}

	logger.Debug("credential minted", zap.String("address", item.Address.String()), zap.String("owner", item.Owner.String()))
	return nil
}

func (i *Issuer) Lookup(ctx context.Context, tx storage.Storage, address solana.PublicKey) (*storage.Ticket, error) {
	return tx.GetTicket(ctx, address.String())
}

func (i *Issuer) VerifyOwnership(ctx context.Context, tx storage.Storage, address, claimant solana.PublicKey) (bool, error) {
	ticket, err := tx.GetTicket(ctx, address.String())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ticket.Owner == claimant.String(), nil
}

func (i *Issuer) VerifyCollectionItem(ctx context.Context, tx storage.Storage, address, collection solana.PublicKey) (bool, error) {
	ticket, err := tx.GetTicket(ctx, address.String())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ticket.Verified && ticket.Collection == collection.String(), nil
}

package token

import (
	"context"
	"errors"
	"fmt"
	"math"

	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrOverflow          = errors.New("balance overflow")
)

// Ledger moves fungible tokens between accounts kept in storage. Every method
// works on the storage handle it is given so a caller's transaction covers it.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// TransferInto moves amount from payer into escrow, opening the escrow account if needed.
func (l *Ledger) TransferInto(ctx context.Context, tx storage.Storage, escrow, payer solana.PublicKey, amount uint64) error {
	if payer.IsZero() || escrow.IsZero() || payer.Equals(escrow) {
		return ErrInvalidAccount
	}

	from, err := tx.GetTokenAccount(ctx, payer.String())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("payer %s: %w", payer, ErrInvalidAccount)
	}
	if err != nil {
		return err
	}

	to, err := l.openAccount(ctx, tx, escrow)
	if err != nil {
		return err
	}

	return l.move(ctx, tx, from, to, amount)
}

// TransferOut releases amount from escrow to recipient, opening the recipient account if needed.
func (l *Ledger) TransferOut(ctx context.Context, tx storage.Storage, escrow, recipient solana.PublicKey, amount uint64) error {
	if recipient.IsZero() || escrow.IsZero() || recipient.Equals(escrow) {
		return ErrInvalidAccount
	}

	from, err := tx.GetTokenAccount(ctx, escrow.String())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("escrow %s: %w", escrow, ErrInvalidAccount)
	}
	if err != nil {
		return err
	}

	to, err := l.openAccount(ctx, tx, recipient)
	if err != nil {
		return err
	}

	return l.move(ctx, tx, from, to, amount)
}

// Airdrop credits amount to account out of thin air. Development faucet only.
func (l *Ledger) Airdrop(ctx context.Context, tx storage.Storage, account solana.PublicKey, amount uint64) (uint64, error) {
	if account.IsZero() {
		return 0, ErrInvalidAccount
	}

	to, err := l.openAccount(ctx, tx, account)
	if err != nil {
		return 0, err
	}

	if amount > math.MaxInt64 || to.Balance > math.MaxInt64-amount {
		return 0, ErrOverflow
	}
	to.Balance += amount

	if err := tx.UpdateTokenAccount(ctx, to); err != nil {
		return 0, err
	}

	logger.Debug("airdrop", zap.String("account", account.String()), zap.Uint64("amount", amount))
	return to.Balance, nil
}

func (l *Ledger) Balance(ctx context.Context, tx storage.Storage, account solana.PublicKey) (uint64, error) {
	stored, err := tx.GetTokenAccount(ctx, account.String())
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stored.Balance, nil
}

func (l *Ledger) openAccount(ctx context.Context, tx storage.Storage, address solana.PublicKey) (*storage.TokenAccount, error) {
	account, err := tx.GetTokenAccount(ctx, address.String())
	if errors.Is(err, storage.ErrNotFound) {
		return &storage.TokenAccount{Address: address.String()}, nil
	}
	return account, err
}

// balances are capped at MaxInt64 because SQLite stores signed integers.
func (l *Ledger) move(ctx context.Context, tx storage.Storage, from, to *storage.TokenAccount, amount uint64) error {
	if from.Balance < amount {
		return fmt.Errorf("account %s holds %d, needs %d: %w", from.Address, from.Balance, amount, ErrInsufficientFunds)
	}
	if amount > math.MaxInt64 || to.Balance > math.MaxInt64-amount {
		return ErrOverflow
	}

	from.Balance -= amount
	to.Balance += amount

	if err := tx.UpdateTokenAccount(ctx, from); err != nil {
		return err
	}
	if err := tx.UpdateTokenAccount(ctx, to); err != nil {
		return err
	}

	logger.Debug("token transfer", zap.String("from", from.Address), zap.String("to", to.Address), zap.Uint64("amount", amount))
	return nil
}

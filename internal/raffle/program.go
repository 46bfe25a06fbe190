package raffle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"raffle/internal/blockchain"
	"raffle/internal/credential"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/storage"
	"raffle/internal/token"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	DefaultTicketName = "Token Lottery Ticket #"
	DefaultSymbol     = "TLT"
)

type TokenTransfer interface {
	TransferInto(ctx context.Context, tx storage.Storage, escrow, payer solana.PublicKey, amount uint64) error
	TransferOut(ctx context.Context, tx storage.Storage, escrow, recipient solana.PublicKey, amount uint64) error
}

type CredentialIssuer interface {
	CreateCollection(ctx context.Context, tx storage.Storage, address solana.PublicKey, roundID uint64, authority solana.PublicKey, metadata credential.Metadata) error
	Mint(ctx context.Context, tx storage.Storage, item credential.Item) error
	Lookup(ctx context.Context, tx storage.Storage, address solana.PublicKey) (*storage.Ticket, error)
	VerifyOwnership(ctx context.Context, tx storage.Storage, address, claimant solana.PublicKey) (bool, error)
	VerifyCollectionItem(ctx context.Context, tx storage.Storage, address, collection solana.PublicKey) (bool, error)
}

// RandomnessOracle records a request inside tx and returns its handle. The
// randomness arrives later through Program.CallbackChooseWinner.
type RandomnessOracle interface {
	RequestRandomness(ctx context.Context, tx storage.Storage, seed [32]byte) (string, error)
}

type Config struct {
	ProgramID   solana.PublicKey
	Clock       clockwork.Clock
	Storage     storage.Storage
	Tokens      TokenTransfer
	Credentials CredentialIssuer
	Oracle      RandomnessOracle

	// TicketMetadata.Name is the prefix of every ticket name; the sequence index is appended.
	TicketMetadata credential.Metadata
}

func (c *Config) Validate() error {
	if c.Storage == nil {
		return errors.New("storage is required")
	}
	if c.Tokens == nil {
		return errors.New("token transfer is required")
	}
	if c.Credentials == nil {
		return errors.New("credential issuer is required")
	}
	if c.Oracle == nil {
		return errors.New("randomness oracle is required")
	}
	if c.ProgramID.IsZero() {
		c.ProgramID = blockchain.DefaultProgramID
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.TicketMetadata.Name == "" {
		c.TicketMetadata.Name = DefaultTicketName
	}
	if c.TicketMetadata.Symbol == "" {
		c.TicketMetadata.Symbol = DefaultSymbol
	}
	return nil
}

// Program is the lottery state machine. Each exported operation is a single
// storage transaction: it either commits completely or leaves no trace.
type Program struct {
	cfg       Config
	addresses blockchain.Addresses
}

func New(cfg Config) (*Program, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program config: %w", err)
	}
	return &Program{
		cfg:       cfg,
		addresses: blockchain.NewAddresses(cfg.ProgramID),
	}, nil
}

func (p *Program) Addresses() blockchain.Addresses {
	return p.addresses
}

func (p *Program) execute(ctx context.Context, operation string, fn func(tx storage.Storage) error) error {
	err := p.cfg.Storage.Transaction(ctx, fn)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(operation, "error").Inc()
		if KindOf(err) == KindUnknown {
			logger.Error(operation+": failed", zap.Error(err))
		} else {
			logger.Debug(operation+": rejected", zap.String("code", CodeOf(err)), zap.Error(err))
		}
		return err
	}
	metrics.OperationsTotal.WithLabelValues(operation, "success").Inc()
	return nil
}

func (p *Program) loadConfig(ctx context.Context, tx storage.Storage) (*storage.Config, error) {
	config, err := tx.GetConfig(ctx, p.addresses.Config().String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return config, err
}

func (p *Program) loadRound(ctx context.Context, tx storage.Storage) (*storage.Round, error) {
	round, err := tx.GetRound(ctx, p.addresses.Round().String())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrLotteryNotInitialized
	}
	return round, err
}

func (p *Program) emit(ctx context.Context, tx storage.Storage, eventType blockchain.EventType, roundID uint64, actor solana.PublicKey, amount uint64, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return tx.AppendEvent(ctx, &storage.Event{
		ID:        uuid.NewString(),
		EventType: eventType,
		RoundID:   roundID,
		Actor:     actor.String(),
		Amount:    amount,
		Payload:   string(encoded),
		CreatedAt: p.cfg.Clock.Now(),
	})
}

// tokenError maps ledger failures onto program errors.
func tokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrInsufficientFunds):
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case errors.Is(err, token.ErrInvalidAccount):
		return fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	default:
		return err
	}
}

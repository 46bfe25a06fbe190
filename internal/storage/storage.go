package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Storage is the ledger every operation runs against. Transaction commits all
// writes made through tx or none of them.
type Storage interface {
	Transaction(ctx context.Context, fn func(tx Storage) error) error

	// configuration and round
	GetConfig(ctx context.Context, address string) (*Config, error)
	SaveConfig(ctx context.Context, config *Config) error
	GetRound(ctx context.Context, address string) (*Round, error)
	SaveRound(ctx context.Context, round *Round) error

	// credentials
	CreateCollection(ctx context.Context, collection *Collection) error
	GetCollection(ctx context.Context, address string) (*Collection, error)
	CreateTicket(ctx context.Context, ticket *Ticket) error
	GetTicket(ctx context.Context, address string) (*Ticket, error)
	GetTicketsByRound(ctx context.Context, roundID uint64) ([]*Ticket, error)
	GetTicketsByOwner(ctx context.Context, owner string) ([]*Ticket, error)

	// token accounts
	GetTokenAccount(ctx context.Context, address string) (*TokenAccount, error)
	UpdateTokenAccount(ctx context.Context, account *TokenAccount) error

	// randomness requests
	CreateRandomnessRequest(ctx context.Context, request *RandomnessRequest) error
	GetRandomnessRequest(ctx context.Context, handle string) (*RandomnessRequest, error)
	GetPendingRandomnessRequests(ctx context.Context, limit int) ([]*RandomnessRequest, error)
	UpdateRandomnessRequest(ctx context.Context, request *RandomnessRequest) error

	// request signatures
	ConsumeSignature(ctx context.Context, record *ConsumedSignature, expiredBefore time.Time) error

	// events
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, eventType string, limit int) ([]*Event, error)

	Close() error
}

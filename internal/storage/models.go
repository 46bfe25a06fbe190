package storage

import "time"

// NoWinner marks a round whose randomness has not been revealed.
const NoWinner int64 = -1

type Config struct {
	Address     string `gorm:"primaryKey"`
	Authority   string `gorm:"not null"`
	SaleStart   int64  `gorm:"not null"`
	SaleEnd     int64  `gorm:"not null"`
	TicketPrice uint64 `gorm:"not null"`
	RoundID     uint64 `gorm:"not null"`
	UpdatedAt   time.Time
}

type Round struct {
	Address          string `gorm:"primaryKey"`
	RoundID          uint64 `gorm:"not null"`
	TotalTickets     uint64 `gorm:"not null"`
	PotAmount        uint64 `gorm:"not null"`
	WinnerIndex      int64  `gorm:"not null"`
	WinnerChosen     bool   `gorm:"not null"`
	Claimed          bool   `gorm:"not null"`
	RandomnessHandle string
	Collection       string `gorm:"not null"`
	Escrow           string `gorm:"not null"`
	UpdatedAt        time.Time
}

type Collection struct {
	Address   string `gorm:"primaryKey"`
	RoundID   uint64 `gorm:"uniqueIndex"`
	Authority string `gorm:"not null"`
	Name      string
	Symbol    string
	URI       string
	CreatedAt time.Time
}

type Ticket struct {
	Address       string `gorm:"primaryKey"`
	RoundID       uint64 `gorm:"uniqueIndex:idx_ticket_round_sequence"`
	SequenceIndex uint64 `gorm:"uniqueIndex:idx_ticket_round_sequence"`
	Owner         string `gorm:"index;not null"`
	Collection    string `gorm:"not null"`
	Verified      bool
	Name          string
	Symbol        string
	URI           string
	CreatedAt     time.Time
}

type TokenAccount struct {
	Address   string `gorm:"primaryKey"`
	Balance   uint64 `gorm:"not null"`
	UpdatedAt time.Time
}

type RequestStatus = string

const (
	RequestPending   RequestStatus = "pending"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestRejected  RequestStatus = "rejected"
)

type RandomnessRequest struct {
	Handle      string        `gorm:"primaryKey"`
	Seed        string        `gorm:"not null"`
	Status      RequestStatus `gorm:"index;not null"`
	Randomness  string
	Proof       string
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	FulfilledAt *time.Time
}

type Event struct {
	ID        string `gorm:"primaryKey"`
	EventType string `gorm:"index;not null"`
	RoundID   uint64 `gorm:"index"`
	Actor     string
	Amount    uint64
	Payload   string
	CreatedAt time.Time `gorm:"index"`
}

// ConsumedSignature records a request signature that has already been honoured.
type ConsumedSignature struct {
	Signature  string `gorm:"primaryKey"`
	Signer     string `gorm:"index;not null"`
	Route      string `gorm:"not null"`
	ConsumedAt int64  `gorm:"index;not null"`
}

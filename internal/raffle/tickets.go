package raffle

import (
	"context"
	"errors"

	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
)

// TicketCredential proves that a sequence index of a round belongs to its owner.
// Verified is true only when the credential sits at the address derived from
// (RoundID, SequenceIndex) and is a verified member of that round's collection.
type TicketCredential struct {
	Address       string `json:"address"`
	RoundID       uint64 `json:"roundId"`
	SequenceIndex uint64 `json:"sequenceIndex"`
	Owner         string `json:"owner"`
	Collection    string `json:"collection"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	URI           string `json:"uri"`
	Verified      bool   `json:"verified"`
}

func (p *Program) credentialOf(ticket *storage.Ticket) *TicketCredential {
	expected := p.addresses.Ticket(ticket.RoundID, ticket.SequenceIndex).String()
	collection := p.addresses.Collection(ticket.RoundID).String()

	return &TicketCredential{
		Address:       ticket.Address,
		RoundID:       ticket.RoundID,
		SequenceIndex: ticket.SequenceIndex,
		Owner:         ticket.Owner,
		Collection:    ticket.Collection,
		Name:          ticket.Name,
		Symbol:        ticket.Symbol,
		URI:           ticket.URI,
		Verified:      ticket.Verified && ticket.Address == expected && ticket.Collection == collection,
	}
}

// LookupTicket resolves (roundID, sequence) to the ticket minted at that position.
func (p *Program) LookupTicket(ctx context.Context, roundID, sequence uint64) (*TicketCredential, error) {
	ticket, err := p.cfg.Credentials.Lookup(ctx, p.cfg.Storage, p.addresses.Ticket(roundID, sequence))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return p.credentialOf(ticket), nil
}

func (p *Program) ListTickets(ctx context.Context, roundID uint64) ([]*TicketCredential, error) {
	tickets, err := p.cfg.Storage.GetTicketsByRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return p.credentials(tickets), nil
}

func (p *Program) TicketsOwnedBy(ctx context.Context, owner solana.PublicKey) ([]*TicketCredential, error) {
	tickets, err := p.cfg.Storage.GetTicketsByOwner(ctx, owner.String())
	if err != nil {
		return nil, err
	}
	return p.credentials(tickets), nil
}

func (p *Program) credentials(tickets []*storage.Ticket) []*TicketCredential {
	result := make([]*TicketCredential, 0, len(tickets))
	for _, ticket := range tickets {
		result = append(result, p.credentialOf(ticket))
	}
	return result
}

// Events returns the most recent program events, newest first.
func (p *Program) Events(ctx context.Context, eventType string, limit int) ([]*storage.Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return p.cfg.Storage.GetEvents(ctx, eventType, limit)
}

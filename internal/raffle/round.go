package raffle

import (
	"context"
	"errors"
	"strconv"
	"time"

	"raffle/internal/blockchain"
	"raffle/internal/credential"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

type State string

const (
	StateOpen          State = "Open"
	StateClosed        State = "Closed"
	StateRevealPending State = "RevealPending"
	StateRevealed      State = "Revealed"
	StateSettled       State = "Settled"
)

// Status is a read-only snapshot of the live round.
type Status struct {
	RoundID          uint64    `json:"roundId"`
	State            State     `json:"state"`
	SaleStart        time.Time `json:"saleStart"`
	SaleEnd          time.Time `json:"saleEnd"`
	TicketPrice      uint64    `json:"ticketPrice"`
	TotalTickets     uint64    `json:"totalTickets"`
	PotAmount        uint64    `json:"potAmount"`
	WinnerChosen     bool      `json:"winnerChosen"`
	WinnerIndex      *uint64   `json:"winnerIndex,omitempty"`
	Claimed          bool      `json:"claimed"`
	RandomnessHandle string    `json:"randomnessHandle,omitempty"`
	Collection       string    `json:"collection"`
	Escrow           string    `json:"escrow"`
	Authority        string    `json:"authority"`
}

func stateOf(config *storage.Config, round *storage.Round, now time.Time) State {
	switch {
	case round.Claimed:
		return StateSettled
	case round.WinnerChosen:
		return StateRevealed
	case round.RandomnessHandle != "":
		return StateRevealPending
	case now.Unix() >= config.SaleEnd:
		return StateClosed
	default:
		return StateOpen
	}
}

// InitializeLottery opens the round for the configuration's current round id.
func (p *Program) InitializeLottery(ctx context.Context, payer solana.PublicKey) (*Status, error) {
	var status *Status
	err := p.execute(ctx, "initialize_lottery", func(tx storage.Storage) error {
		config, err := p.loadConfig(ctx, tx)
		if err != nil {
			return err
		}

		round, err := p.loadRound(ctx, tx)
		if err != nil && !errors.Is(err, ErrLotteryNotInitialized) {
			return err
		}
		if round != nil {
			if round.RoundID == config.RoundID {
				return ErrAlreadyInitializedForRound
			}
			if !settled(round) {
				return ErrRoundStillActive
			}
		}

		if err := p.openRound(ctx, tx, config); err != nil {
			return err
		}

		status, err = p.status(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.CurrentRound.Set(float64(status.RoundID))
	metrics.PotAmount.Set(0)
	logger.Info("lottery initialized", zap.Uint64("round", status.RoundID), zap.String("payer", payer.String()))
	return status, nil
}

// openRound creates the collection marker for config.RoundID and overwrites
// the live round record with a fresh one.
func (p *Program) openRound(ctx context.Context, tx storage.Storage, config *storage.Config) error {
	collection := p.addresses.Collection(config.RoundID)
	authority, err := solana.PublicKeyFromBase58(config.Authority)
	if err != nil {
		return err
	}

	err = p.cfg.Credentials.CreateCollection(ctx, tx, collection, config.RoundID, authority, credential.Metadata{
		Name:   p.cfg.TicketMetadata.Name,
		Symbol: p.cfg.TicketMetadata.Symbol,
		URI:    p.cfg.TicketMetadata.URI,
	})
	if errors.Is(err, credential.ErrCollectionExists) {
		return ErrAlreadyInitializedForRound
	}
	if err != nil {
		return err
	}

	round := &storage.Round{
		Address:     p.addresses.Round().String(),
		RoundID:     config.RoundID,
		WinnerIndex: storage.NoWinner,
		Collection:  collection.String(),
		Escrow:      p.addresses.Escrow(config.RoundID).String(),
	}
	if err := tx.SaveRound(ctx, round); err != nil {
		return err
	}

	return p.emit(ctx, tx, blockchain.LotteryInitializedEventType, config.RoundID, authority, 0, blockchain.LotteryInitialized{
		RoundID:    config.RoundID,
		Collection: round.Collection,
	})
}

// BuyTicket takes the ticket price from purchaser into escrow and mints the
// ticket at (round, totalTickets). Transfer, mint and counters commit together.
func (p *Program) BuyTicket(ctx context.Context, purchaser solana.PublicKey) (*TicketCredential, error) {
	var ticket *TicketCredential
	var pot uint64
	err := p.execute(ctx, "buy_ticket", func(tx storage.Storage) error {
		config, err := p.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		round, err := p.loadRound(ctx, tx)
		if err != nil {
			return err
		}

		now := p.cfg.Clock.Now().Unix()
		if now < config.SaleStart {
			return ErrSaleNotStarted
		}
		if now >= config.SaleEnd || round.RandomnessHandle != "" || round.WinnerChosen || round.Claimed {
			return ErrSaleEnded
		}

		escrow := p.addresses.Escrow(round.RoundID)
		if err := p.cfg.Tokens.TransferInto(ctx, tx, escrow, purchaser, config.TicketPrice); err != nil {
			return tokenError(err)
		}

		sequence := round.TotalTickets
		address := p.addresses.Ticket(round.RoundID, sequence)
		item := credential.Item{
			Address:       address,
			Owner:         purchaser,
			Collection:    p.addresses.Collection(round.RoundID),
			RoundID:       round.RoundID,
			SequenceIndex: sequence,
			Metadata: credential.Metadata{
				Name:   ticketName(p.cfg.TicketMetadata.Name, sequence),
				Symbol: p.cfg.TicketMetadata.Symbol,
				URI:    p.cfg.TicketMetadata.URI,
			},
		}
		if err := p.cfg.Credentials.Mint(ctx, tx, item); err != nil {
			return err
		}

		round.TotalTickets++
		round.PotAmount += config.TicketPrice
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}

		ticket = &TicketCredential{
			Address:       address.String(),
			RoundID:       round.RoundID,
			SequenceIndex: sequence,
			Owner:         purchaser.String(),
			Collection:    item.Collection.String(),
			Name:          item.Metadata.Name,
			Symbol:        item.Metadata.Symbol,
			URI:           item.Metadata.URI,
			Verified:      true,
		}
		pot = round.PotAmount

		return p.emit(ctx, tx, blockchain.TicketBoughtEventType, round.RoundID, purchaser, config.TicketPrice, blockchain.TicketBought{
			Ticket:              ticket.Address,
			Purchaser:           ticket.Owner,
			Price:               config.TicketPrice,
			CurrentTotalTickets: round.TotalTickets,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.TicketsSoldTotal.Inc()
	metrics.PotAmount.Set(float64(pot))
	logger.Info("ticket bought",
		zap.Uint64("round", ticket.RoundID),
		zap.Uint64("sequence", ticket.SequenceIndex),
		zap.String("owner", ticket.Owner),
	)
	return ticket, nil
}

// Status returns the live round together with its configuration.
func (p *Program) Status(ctx context.Context) (*Status, error) {
	return p.status(ctx, p.cfg.Storage)
}

func (p *Program) status(ctx context.Context, tx storage.Storage) (*Status, error) {
	config, err := p.loadConfig(ctx, tx)
	if err != nil {
		return nil, err
	}
	round, err := p.loadRound(ctx, tx)
	if err != nil {
		return nil, err
	}

	status := &Status{
		RoundID:          round.RoundID,
		State:            stateOf(config, round, p.cfg.Clock.Now()),
		SaleStart:        time.Unix(config.SaleStart, 0).UTC(),
		SaleEnd:          time.Unix(config.SaleEnd, 0).UTC(),
		TicketPrice:      config.TicketPrice,
		TotalTickets:     round.TotalTickets,
		PotAmount:        round.PotAmount,
		WinnerChosen:     round.WinnerChosen,
		Claimed:          round.Claimed,
		RandomnessHandle: round.RandomnessHandle,
		Collection:       round.Collection,
		Escrow:           round.Escrow,
		Authority:        config.Authority,
	}
	if round.WinnerChosen {
		winner := uint64(round.WinnerIndex)
		status.WinnerIndex = &winner
	}
	return status, nil
}

func ticketName(prefix string, sequence uint64) string {
	return prefix + strconv.FormatUint(sequence, 10)
}

package raffle

import (
	"context"
	"errors"
	"math"
	"time"

	"raffle/internal/blockchain"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// SaleWindow is the half-open interval [Start, End) in which tickets sell.
type SaleWindow struct {
	Start time.Time
	End   time.Time
}

func (w SaleWindow) validate() error {
	if w.End.Unix() <= w.Start.Unix() {
		return ErrInvalidSaleWindow
	}
	return nil
}

// Configuration is a read-only snapshot of the configuration record.
type Configuration struct {
	Authority   string    `json:"authority"`
	SaleStart   time.Time `json:"saleStart"`
	SaleEnd     time.Time `json:"saleEnd"`
	TicketPrice uint64    `json:"ticketPrice"`
	RoundID     uint64    `json:"roundId"`
}

func (p *Program) Configuration(ctx context.Context) (*Configuration, error) {
	config, err := p.loadConfig(ctx, p.cfg.Storage)
	if err != nil {
		return nil, err
	}
	return &Configuration{
		Authority:   config.Authority,
		SaleStart:   time.Unix(config.SaleStart, 0).UTC(),
		SaleEnd:     time.Unix(config.SaleEnd, 0).UTC(),
		TicketPrice: config.TicketPrice,
		RoundID:     config.RoundID,
	}, nil
}

// validatePrice bounds the price to what storage and token balances can hold.
func validatePrice(ticketPrice uint64) error {
	if ticketPrice == 0 || ticketPrice > math.MaxInt64 {
		return ErrInvalidTicketPrice
	}
	return nil
}

// InitializeConfig creates the configuration record with round id 0. The
// caller becomes the authority for restarts and commits.
func (p *Program) InitializeConfig(ctx context.Context, authority solana.PublicKey, window SaleWindow, ticketPrice uint64) error {
	if err := window.validate(); err != nil {
		return err
	}
	if err := validatePrice(ticketPrice); err != nil {
		return err
	}

	return p.execute(ctx, "initialize_config", func(tx storage.Storage) error {
		_, err := p.loadConfig(ctx, tx)
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, ErrNotInitialized) {
			return err
		}

		config := &storage.Config{
			Address:     p.addresses.Config().String(),
			Authority:   authority.String(),
			SaleStart:   window.Start.Unix(),
			SaleEnd:     window.End.Unix(),
			TicketPrice: ticketPrice,
			RoundID:     0,
		}
		if err := tx.SaveConfig(ctx, config); err != nil {
			return err
		}

		logger.Info("config initialized",
			zap.Int64("saleStart", config.SaleStart),
			zap.Int64("saleEnd", config.SaleEnd),
			zap.Uint64("ticketPrice", ticketPrice),
			zap.String("authority", config.Authority),
		)

		return p.emit(ctx, tx, blockchain.ConfigInitializedEventType, 0, authority, ticketPrice, blockchain.ConfigInitialized{
			SaleStart:   config.SaleStart,
			SaleEnd:     config.SaleEnd,
			TicketPrice: ticketPrice,
			Authority:   config.Authority,
		})
	})
}

// RestartLottery starts the next round once the current one is settled. It
// advances the round id and opens the new round in the same transaction.
func (p *Program) RestartLottery(ctx context.Context, caller solana.PublicKey, window SaleWindow, ticketPrice uint64) (uint64, error) {
	if err := window.validate(); err != nil {
		return 0, err
	}
	if err := validatePrice(ticketPrice); err != nil {
		return 0, err
	}

	var roundID uint64
	err := p.execute(ctx, "restart_lottery", func(tx storage.Storage) error {
		config, err := p.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if config.Authority != caller.String() {
			return ErrUnauthorized
		}

		round, err := p.loadRound(ctx, tx)
		if err != nil && !errors.Is(err, ErrLotteryNotInitialized) {
			return err
		}
		if round != nil && !settled(round) {
			return ErrRoundStillActive
		}

		previous := config.RoundID
		config.SaleStart = window.Start.Unix()
		config.SaleEnd = window.End.Unix()
		config.TicketPrice = ticketPrice
		config.RoundID++
		if err := tx.SaveConfig(ctx, config); err != nil {
			return err
		}

		if err := p.openRound(ctx, tx, config); err != nil {
			return err
		}

		roundID = config.RoundID
		logger.Info("lottery restarted", zap.Uint64("previousRound", previous), zap.Uint64("round", roundID))

		return p.emit(ctx, tx, blockchain.LotteryRestartedEventType, roundID, caller, ticketPrice, blockchain.LotteryRestarted{
			PreviousRoundID: previous,
			RoundID:         roundID,
			SaleStart:       config.SaleStart,
			SaleEnd:         config.SaleEnd,
			TicketPrice:     ticketPrice,
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.CurrentRound.Set(float64(roundID))
	metrics.PotAmount.Set(0)
	return roundID, nil
}

// settled reports whether a round holds no outstanding money or pending draw.
func settled(round *storage.Round) bool {
	if round.Claimed {
		return true
	}
	return round.TotalTickets == 0 && round.PotAmount == 0 && round.RandomnessHandle == ""
}

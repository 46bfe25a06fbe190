package raffle

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"raffle/internal/blockchain"
	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// SeedMaterial binds an oracle request to the round it was issued for and to
// the caller's seed, which the oracle cannot know before the request.
func SeedMaterial(round solana.PublicKey, roundID, totalTickets uint64, collection solana.PublicKey, clientSeed [32]byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(round.Bytes())
	hasher.Write(binary.LittleEndian.AppendUint64(nil, roundID))
	hasher.Write(binary.LittleEndian.AppendUint64(nil, totalTickets))
	hasher.Write(collection.Bytes())
	hasher.Write(clientSeed[:])

	var seed [32]byte
	copy(seed[:], hasher.Sum(nil))
	return seed
}

// WinnerIndex reduces the first eight bytes of randomness modulo totalTickets.
// The modulo bias is negligible for realistic ticket counts.
func WinnerIndex(randomness [32]byte, totalTickets uint64) uint64 {
	return binary.LittleEndian.Uint64(randomness[:8]) % totalTickets
}

// CommitWinner requests randomness for a closed round. Only the authority may
// commit, and only once per round.
func (p *Program) CommitWinner(ctx context.Context, caller solana.PublicKey, clientSeed [32]byte) (string, error) {
	var handle string
	err := p.execute(ctx, "commit_winner", func(tx storage.Storage) error {
		config, err := p.loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if config.Authority != caller.String() {
			return ErrUnauthorized
		}
		round, err := p.loadRound(ctx, tx)
		if err != nil {
			return err
		}

		if p.cfg.Clock.Now().Unix() < config.SaleEnd {
			return ErrSaleNotEnded
		}
		if round.TotalTickets == 0 {
			return ErrNoTickets
		}
		if round.RandomnessHandle != "" {
			return ErrAlreadyCommitted
		}

		seed := SeedMaterial(
			p.addresses.Round(),
			round.RoundID,
			round.TotalTickets,
			p.addresses.Collection(round.RoundID),
			clientSeed,
		)
		handle, err = p.cfg.Oracle.RequestRandomness(ctx, tx, seed)
		if err != nil {
			return err
		}

		round.RandomnessHandle = handle
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}

		return p.emit(ctx, tx, blockchain.WinnerCommittedEventType, round.RoundID, caller, 0, blockchain.WinnerCommitted{
			Handle: handle,
			Seed:   hex.EncodeToString(seed[:]),
		})
	})
	if err != nil {
		return "", err
	}

	logger.Info("winner committed", zap.String("handle", handle))
	return handle, nil
}

// CallbackChooseWinner is the oracle's entry point. randomness must already be
// verified against the request's seed; only the handle is checked here.
func (p *Program) CallbackChooseWinner(ctx context.Context, handle string, randomness [32]byte) (uint64, error) {
	var winner uint64
	var roundID uint64
	err := p.execute(ctx, "callback_choose_winner", func(tx storage.Storage) error {
		round, err := p.loadRound(ctx, tx)
		if errors.Is(err, ErrLotteryNotInitialized) {
			return ErrStaleRequest
		}
		if err != nil {
			return err
		}
		if handle == "" || round.RandomnessHandle != handle {
			return ErrStaleRequest
		}
		if round.WinnerChosen {
			return ErrWinnerAlreadyChosen
		}

		// A handle is only issued for a round with tickets, and tickets cannot be removed.
		winner = WinnerIndex(randomness, round.TotalTickets)
		roundID = round.RoundID
		round.WinnerIndex = int64(winner)
		round.WinnerChosen = true
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}

		return p.emit(ctx, tx, blockchain.WinnerSelectedEventType, round.RoundID, solana.PublicKey{}, 0, blockchain.WinnerSelected{
			Handle:       handle,
			Winner:       winner,
			TotalTickets: round.TotalTickets,
		})
	})
	if err != nil {
		return 0, err
	}

	logger.Info("winner selected", zap.Uint64("round", roundID), zap.Uint64("winner", winner))
	return winner, nil
}

package raffle

import (
	"context"

	"raffle/internal/blockchain"
	"raffle/internal/logger"
	"raffle/internal/metrics"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// ClaimWinnings pays the whole pot to claimant if ticket is the round's
// winning ticket and claimant owns it. The transfer and the zeroed pot
// commit together, so a replayed claim sees AlreadyClaimed.
func (p *Program) ClaimWinnings(ctx context.Context, claimant, ticket solana.PublicKey) (uint64, error) {
	var amount uint64
	var roundID uint64
	err := p.execute(ctx, "claim_winnings", func(tx storage.Storage) error {
		round, err := p.loadRound(ctx, tx)
		if err != nil {
			return err
		}
		if !round.WinnerChosen {
			return ErrWinnerNotChosen
		}
		if round.Claimed || round.PotAmount == 0 {
			return ErrAlreadyClaimed
		}

		winning := p.addresses.Ticket(round.RoundID, uint64(round.WinnerIndex))
		if !ticket.Equals(winning) {
			return ErrNotWinner
		}

		collection := p.addresses.Collection(round.RoundID)
		member, err := p.cfg.Credentials.VerifyCollectionItem(ctx, tx, ticket, collection)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotWinner
		}

		owned, err := p.cfg.Credentials.VerifyOwnership(ctx, tx, ticket, claimant)
		if err != nil {
			return err
		}
		if !owned {
			return ErrNotWinner
		}

		amount = round.PotAmount
		roundID = round.RoundID
		escrow := p.addresses.Escrow(round.RoundID)
		if err := p.cfg.Tokens.TransferOut(ctx, tx, escrow, claimant, amount); err != nil {
			return tokenError(err)
		}

		round.PotAmount = 0
		round.Claimed = true
		if err := tx.SaveRound(ctx, round); err != nil {
			return err
		}

		return p.emit(ctx, tx, blockchain.WinningsClaimedEventType, round.RoundID, claimant, amount, blockchain.WinningsClaimed{
			Ticket:      ticket.String(),
			TicketName:  ticketName(p.cfg.TicketMetadata.Name, uint64(round.WinnerIndex)),
			Destination: claimant.String(),
			Amount:      amount,
		})
	})
	if err != nil {
		return 0, err
	}

	metrics.PotAmount.Set(0)
	logger.Info("winnings claimed", zap.Uint64("round", roundID), zap.String("claimant", claimant.String()), zap.Uint64("amount", amount))
	return amount, nil
}

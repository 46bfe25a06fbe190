package blockchain

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

var DefaultProgramID = solana.MustPublicKeyFromBase58("BQuBEeVWhtjKUSkmGPEoUo5s3zPnukrFQaFE9FTgFCdN")

const (
	ConfigSeed     = "token_lottery"
	RoundSeed      = "round"
	CollectionSeed = "collection_mint"
	EscrowSeed     = "escrow"
)

// Addresses derives the program addresses of every persisted record.
type Addresses struct {
	ProgramID solana.PublicKey
}

func NewAddresses(programID solana.PublicKey) Addresses {
	return Addresses{ProgramID: programID}
}

func (a Addresses) Config() solana.PublicKey {
	return a.derive([]byte(ConfigSeed))
}

func (a Addresses) Round() solana.PublicKey {
	return a.derive([]byte(RoundSeed))
}

func (a Addresses) Collection(roundID uint64) solana.PublicKey {
	return a.derive([]byte(CollectionSeed), le(roundID))
}

func (a Addresses) Escrow(roundID uint64) solana.PublicKey {
	return a.derive([]byte(EscrowSeed), le(roundID))
}

// Ticket is the only way a sequence index is resolved to a credential.
func (a Addresses) Ticket(roundID uint64, sequence uint64) solana.PublicKey {
	return a.derive(le(roundID), le(sequence))
}

// derive panics if no bump yields an off-curve address.
func (a Addresses) derive(seeds ...[]byte) solana.PublicKey {
	address, _, err := solana.FindProgramAddress(seeds, a.ProgramID)
	if err != nil {
		panic(err)
	}
	return address
}

func le(value uint64) []byte {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, value)
	return buffer
}

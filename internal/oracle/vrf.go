package oracle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"raffle/internal/logger"
	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

var ErrInvalidProof = errors.New("invalid randomness proof")

// Output is the randomness for a seed together with the proof that the oracle
// key produced it. Ed25519 signatures are deterministic, so each seed has
// exactly one valid output per key.
type Output struct {
	Randomness [32]byte
	Proof      solana.Signature
}

// VRF is a local verifiable random function backed by an ed25519 key.
type VRF struct {
	key   solana.PrivateKey
	clock clockwork.Clock
}

func NewVRF(key solana.PrivateKey, clock clockwork.Clock) *VRF {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &VRF{key: key, clock: clock}
}

func (v *VRF) PublicKey() solana.PublicKey {
	return v.key.PublicKey()
}

// RequestRandomness queues seed for fulfillment and returns the request handle.
func (v *VRF) RequestRandomness(ctx context.Context, tx storage.Storage, seed [32]byte) (string, error) {
	handle := Handle(v.PublicKey(), seed)

	err := tx.CreateRandomnessRequest(ctx, &storage.RandomnessRequest{
		Handle:    handle,
		Seed:      hex.EncodeToString(seed[:]),
		Status:    storage.RequestPending,
		CreatedAt: v.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("randomness request %s: %w", handle, err)
	}

	logger.Debug("randomness requested", zap.String("handle", handle))
	return handle, nil
}

func (v *VRF) Prove(seed [32]byte) (Output, error) {
	signature, err := v.key.Sign(seed[:])
	if err != nil {
		return Output{}, err
	}
	return Output{
		Randomness: sha256.Sum256(signature[:]),
		Proof:      signature,
	}, nil
}

func Verify(publicKey solana.PublicKey, seed [32]byte, output Output) error {
	if !output.Proof.Verify(publicKey, seed[:]) {
		return ErrInvalidProof
	}
	expected := sha256.Sum256(output.Proof[:])
	if !bytes.Equal(expected[:], output.Randomness[:]) {
		return ErrInvalidProof
	}
	return nil
}

// Handle derives the request handle of seed for the oracle key.
func Handle(oracle solana.PublicKey, seed [32]byte) string {
	digest := sha256.Sum256(append(oracle.Bytes(), seed[:]...))
	return base58.Encode(digest[:])
}

func DecodeSeed(encoded string) ([32]byte, error) {
	var seed [32]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return seed, err
	}
	if len(raw) != len(seed) {
		return seed, fmt.Errorf("seed has %d bytes, want %d", len(raw), len(seed))
	}
	copy(seed[:], raw)
	return seed, nil
}

func EncodeRandomness(randomness [32]byte) string {
	return hex.EncodeToString(randomness[:])
}

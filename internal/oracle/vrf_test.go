package oracle

import (
	"context"
	"crypto/sha256"
	"testing"

	"raffle/internal/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVRF(t *testing.T) *VRF {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return NewVRF(key, clockwork.NewFakeClock())
}

func TestVRF_ProveVerify(t *testing.T) {
	vrf := newTestVRF(t)
	seed := sha256.Sum256([]byte("round-0"))

	output, err := vrf.Prove(seed)
	require.NoError(t, err)
	require.NoError(t, Verify(vrf.PublicKey(), seed, output))

	t.Run("output is deterministic", func(t *testing.T) {
		again, err := vrf.Prove(seed)
		require.NoError(t, err)
		assert.Equal(t, output, again)
	})

	t.Run("tampered randomness is rejected", func(t *testing.T) {
		tampered := output
		tampered.Randomness[0] ^= 0xff
		assert.ErrorIs(t, Verify(vrf.PublicKey(), seed, tampered), ErrInvalidProof)
	})

	t.Run("other seed is rejected", func(t *testing.T) {
		other := sha256.Sum256([]byte("round-1"))
		assert.ErrorIs(t, Verify(vrf.PublicKey(), other, output), ErrInvalidProof)
	})

	t.Run("other key is rejected", func(t *testing.T) {
		assert.ErrorIs(t, Verify(newTestVRF(t).PublicKey(), seed, output), ErrInvalidProof)
	})
}

func TestVRF_RequestRandomness(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewSqliteStorage(":memory:")
	require.NoError(t, err)
	defer s.Close()

	vrf := newTestVRF(t)
	seed := sha256.Sum256([]byte("seed"))

	handle, err := vrf.RequestRandomness(ctx, s, seed)
	require.NoError(t, err)
	assert.Equal(t, Handle(vrf.PublicKey(), seed), handle)

	request, err := s.GetRandomnessRequest(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, storage.RequestPending, request.Status)

	decoded, err := DecodeSeed(request.Seed)
	require.NoError(t, err)
	assert.Equal(t, seed, decoded)

	_, err = vrf.RequestRandomness(ctx, s, seed)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddresses(t *testing.T) {
	addresses := NewAddresses(DefaultProgramID)

	t.Run("derivation is deterministic", func(t *testing.T) {
		other := NewAddresses(DefaultProgramID)
		assert.Equal(t, addresses.Config(), other.Config())
		assert.Equal(t, addresses.Ticket(3, 7), other.Ticket(3, 7))
		assert.Equal(t, addresses.Collection(3), other.Collection(3))
	})

	t.Run("ticket addresses are unique per round and sequence", func(t *testing.T) {
		seen := make(map[string]bool)
		for round := uint64(0); round < 3; round++ {
			for sequence := uint64(0); sequence < 5; sequence++ {
				address := addresses.Ticket(round, sequence).String()
				require.False(t, seen[address], "duplicate address for round %d sequence %d", round, sequence)
				seen[address] = true
			}
		}
	})

	t.Run("well-known records do not collide", func(t *testing.T) {
		assert.NotEqual(t, addresses.Config(), addresses.Round())
		assert.NotEqual(t, addresses.Collection(0), addresses.Escrow(0))
		assert.NotEqual(t, addresses.Collection(0), addresses.Collection(1))
	})
}

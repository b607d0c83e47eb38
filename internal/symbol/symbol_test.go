package symbol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeduel/match-engine/internal/symbol"
)

func TestParse(t *testing.T) {
	s, err := symbol.Parse("BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSD", s.Name)
	assert.Equal(t, "BTCUSD", s.Base)
	assert.False(t, s.Derivative)

	s, err = symbol.Parse("ETHUSD-PERP")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSD", s.Base)
	assert.True(t, s.Derivative)

	for _, bad := range []string{"", "btcusd", "B", "BTC USD", "BTCUSD-FUT", "1BTC", "-PERP"} {
		_, err := symbol.Parse(bad)
		assert.ErrorIs(t, err, symbol.ErrInvalidSymbol, "symbol %q", bad)
	}
}

func TestShortable(t *testing.T) {
	assert.False(t, symbol.Shortable("BTCUSD"))
	assert.True(t, symbol.Shortable("ETHUSD-PERP"))
}

func TestValidateAll(t *testing.T) {
	assert.NoError(t, symbol.ValidateAll([]string{"BTCUSD", "ETHUSD-PERP"}))
	assert.ErrorIs(t, symbol.ValidateAll([]string{"BTCUSD", "BTCUSD"}), symbol.ErrInvalidSymbol)
	assert.ErrorIs(t, symbol.ValidateAll([]string{"BTCUSD", "bad"}), symbol.ErrInvalidSymbol)
}

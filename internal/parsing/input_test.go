package parsing

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/StockBot/internal/models"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantKeywords []string
		wantTickers  []string
	}{
		{"overview two tickers", "overview : APPL,TSLA", []string{"overview"}, []string{"APPL", "TSLA"}},
		{"spaced freely", "  price ,  last week :  TSLA ", []string{"price", "lastweek"}, []string{"TSLA"}},
		{"tabs and newlines", "eps,\tperatio\n:\nV", []string{"eps", "peratio"}, []string{"V"}},
		{"duplicates kept", "eps,eps:AAPL,AAPL", []string{"eps", "eps"}, []string{"AAPL", "AAPL"}},
		{"case preserved", "Price,Current:tsla", []string{"Price", "Current"}, []string{"tsla"}},
		{"empty tokens kept", "eps,:AAPL,", []string{"eps", ""}, []string{"AAPL", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeywords, got.Keywords)
			assert.Equal(t, tt.wantTickers, got.Tickers)
		})
	}
}

func TestParseRejectsSeparatorCount(t *testing.T) {
	for _, input := range []string{"", "overview AAPL", "price:current:AAPL", "::", "a:b:c:d"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrMalformedInput))
			assert.Equal(t, models.KindMalformedInput, models.KindOf(err))
		})
	}
}

func TestParseRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	alphabet := []rune("abcXYZ09:, \t")

	for i := 0; i < 500; i++ {
		var b strings.Builder
		n := rng.Intn(20)
		for j := 0; j < n; j++ {
			b.WriteRune(alphabet[rng.Intn(len(alphabet))])
		}
		input := b.String()

		got, err := Parse(input)
		colons := strings.Count(input, ":")
		if colons != 1 {
			require.Error(t, err, "input %q", input)
			assert.Equal(t, models.KindMalformedInput, models.KindOf(err))
			continue
		}

		require.NoError(t, err, "input %q", input)
		compact := strings.Join(strings.Fields(input), "")
		left, right, _ := strings.Cut(compact, ":")
		assert.Equal(t, strings.Split(left, ","), got.Keywords, "input %q", input)
		assert.Equal(t, strings.Split(right, ","), got.Tickers, "input %q", input)
	}
}

package cli

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short", "price,current:V", 40, "price,current:V"},
		{"exact", "abcdef", 6, "abcdef"},
		{"ascii", "abcdefghij", 8, "abcde..."},
		{"multibyte", "价格,当前:腾讯控股有限公司", 8, "价格,当前..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateString(tt.input, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestBatchManagerKeepsOrder(t *testing.T) {
	bm := NewBatchManager(newSessionBot(nil), 0)
	assert.Equal(t, defaultBatchConcurrency, bm.concurrent)

	results := bm.Run(context.Background(), []string{"price,current:A", "nonsense", "price,current:C"})
	require.Len(t, results, 3)
	assert.Equal(t, "price,current:A", results[0].Command)
	assert.True(t, results[0].Reply.Success)
	assert.False(t, results[1].Reply.Success)
	assert.Equal(t, "C", results[2].Reply.Results[0].Label)
}

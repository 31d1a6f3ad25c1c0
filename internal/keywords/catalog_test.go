package keywords

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogOrder(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"description", "dividendyield", "dividendpershare", "eps", "peratio", "profitmargin"}, c.Keywords)
	assert.Equal(t, []string{"price"}, c.ModifiableKeywords)
	assert.Equal(t, "current", c.TimeSelector[TimeCurrent])
	assert.Equal(t, "yesterday", c.TimeSelector[TimeYesterday])
	assert.Equal(t, "lastweek", c.RangeSelector[RangeLastWeek])
	assert.Equal(t, "lastmonth", c.RangeSelector[RangeLastMonth])
	assert.Equal(t, "lastyear", c.RangeSelector[RangeLastYear])
}

func TestCatalogMembershipIsExact(t *testing.T) {
	c := Default()

	assert.True(t, c.IsFixed("eps"))
	assert.False(t, c.IsFixed("EPS"))
	assert.False(t, c.IsFixed("price"))
	assert.True(t, c.IsModifiable("price"))
	assert.Equal(t, 1, c.TimeIndex("yesterday"))
	assert.Equal(t, -1, c.TimeIndex("lastweek"))
	assert.Equal(t, 2, c.RangeIndex("lastyear"))
	assert.Equal(t, -1, c.RangeIndex("current"))
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.yaml")
	doc := `keywords: [summary, yield, dps, eps, pe, margin]
modifiableKeywords: [price, quote]
timeSelector: [now, prev]
rangeSelector: [week, month, year]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "summary", c.Keywords[0])
	assert.True(t, c.IsModifiable("quote"))
	assert.Equal(t, 0, c.TimeIndex("now"))
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestValidateRejectsBadShapes(t *testing.T) {
	fixed := []string{"a", "b", "c", "d", "e", "f"}
	mod := []string{"price"}
	timeSel := []string{"current", "yesterday"}
	rangeSel := []string{"lastweek", "lastmonth", "lastyear"}

	tests := []struct {
		name string
		fn   func() (*Catalog, error)
	}{
		{"short keywords", func() (*Catalog, error) { return New(fixed[:5], mod, timeSel, rangeSel) }},
		{"no modifiable", func() (*Catalog, error) { return New(fixed, nil, timeSel, rangeSel) }},
		{"long time selector", func() (*Catalog, error) {
			return New(fixed, mod, []string{"current", "yesterday", "tomorrow"}, rangeSel)
		}},
		{"short range selector", func() (*Catalog, error) { return New(fixed, mod, timeSel, rangeSel[:2]) }},
		{"duplicate across groups", func() (*Catalog, error) {
			return New([]string{"a", "b", "c", "d", "e", "price"}, mod, timeSel, rangeSel)
		}},
		{"reserved overview", func() (*Catalog, error) {
			return New([]string{"a", "b", "c", "d", "e", "overview"}, mod, timeSel, rangeSel)
		}},
		{"token with separator", func() (*Catalog, error) {
			return New([]string{"a", "b", "c", "d", "e", "x:y"}, mod, timeSel, rangeSel)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			assert.Error(t, err)
		})
	}
}

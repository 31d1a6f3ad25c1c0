// Package formatting renders upstream replies into per-ticker text lines.
package formatting

import (
	"fmt"

	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/models"
)

// overviewLines binds each fixed keyword position to its OVERVIEW field and
// line prefix.
var overviewLines = [keywords.FixedKeywordCount]struct {
	field  string
	prefix string
}{
	{"Description", ""},
	{"DividendYield", "Dividend yield: "},
	{"DividendPerShare", "Dividend per share: "},
	{"EPS", "EPS: "},
	{"PERatio", "PE ratio: "},
	{"ProfitMargin", "Profit margin: "},
}

// Series name and entry cap per range selector position.
var rangeSeries = [...]struct {
	key   string
	limit int
}{
	keywords.RangeLastWeek:  {dailySeriesKey, 5},
	keywords.RangeLastMonth: {weeklySeriesKey, 4},
	keywords.RangeLastYear:  {monthlySeriesKey, 12},
}

// Formatter turns raw replies into a FormattedResult. It is stateless apart
// from the catalog and safe for concurrent use.
type Formatter struct {
	catalog *keywords.Catalog
}

// NewFormatter creates a formatter bound to catalog.
func NewFormatter(catalog *keywords.Catalog) *Formatter {
	return &Formatter{catalog: catalog}
}

// Format renders one TickerResult per reply, in reply order. Any reply that
// lacks a field its query type requires fails the whole batch with
// KindMalformedReply.
func (f *Formatter) Format(replies []models.RawReply, plan *models.QueryPlan) (models.FormattedResult, error) {
	if plan == nil {
		return nil, malformed(fmt.Errorf("nil plan"))
	}
	if len(replies) != len(plan.Requests) {
		return nil, malformed(fmt.Errorf("got %d replies for %d requests", len(replies), len(plan.Requests)))
	}

	render, err := f.renderer(plan)
	if err != nil {
		return nil, malformed(err)
	}

	result := make(models.FormattedResult, 0, len(replies))
	for i, raw := range replies {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, malformed(fmt.Errorf("reply %d: %w", i, err))
		}
		tr, err := render(doc)
		if err != nil {
			return nil, malformed(fmt.Errorf("reply %d: %w", i, err))
		}
		result = append(result, tr)
	}
	return result, nil
}

type renderFunc func(document) (models.TickerResult, error)

func (f *Formatter) renderer(plan *models.QueryPlan) (renderFunc, error) {
	switch plan.Type {
	case models.QueryOverview:
		matrix, ok := plan.Selector.(models.OptionMatrix)
		if !ok {
			return nil, fmt.Errorf("overview plan carries %T selector", plan.Selector)
		}
		if len(matrix) != keywords.FixedKeywordCount {
			return nil, fmt.Errorf("option matrix has %d flags", len(matrix))
		}
		return func(doc document) (models.TickerResult, error) {
			return renderOverview(doc, matrix)
		}, nil

	case models.QueryRealtime:
		mod, ok := plan.Selector.(models.Modifier)
		if !ok {
			return nil, fmt.Errorf("realtime plan carries %T selector", plan.Selector)
		}
		switch f.catalog.TimeIndex(string(mod)) {
		case keywords.TimeCurrent:
			return renderQuote, nil
		case keywords.TimeYesterday:
			return func(doc document) (models.TickerResult, error) {
				return renderSeries(doc, dailySeriesKey, 1, false, true)
			}, nil
		}
		return nil, fmt.Errorf("%q is not a time selector", mod)

	case models.QueryHistorical:
		mod, ok := plan.Selector.(models.Modifier)
		if !ok {
			return nil, fmt.Errorf("historical plan carries %T selector", plan.Selector)
		}
		i := f.catalog.RangeIndex(string(mod))
		if i < 0 {
			return nil, fmt.Errorf("%q is not a range selector", mod)
		}
		rs := rangeSeries[i]
		return func(doc document) (models.TickerResult, error) {
			return renderSeries(doc, rs.key, rs.limit, true, false)
		}, nil
	}
	return nil, fmt.Errorf("unknown query type %v", plan.Type)
}

func renderOverview(doc document, matrix models.OptionMatrix) (models.TickerResult, error) {
	name, err := doc.str("Name")
	if err != nil {
		return models.TickerResult{}, err
	}
	symbol, err := doc.str("Symbol")
	if err != nil {
		return models.TickerResult{}, err
	}

	lines := make([]string, 0, len(matrix))
	for i, on := range matrix {
		if !on {
			continue
		}
		v, err := doc.str(overviewLines[i].field)
		if err != nil {
			return models.TickerResult{}, err
		}
		lines = append(lines, overviewLines[i].prefix+v)
	}
	return models.TickerResult{Label: fmt.Sprintf("%s (%s)", name, symbol), Lines: lines}, nil
}

func renderQuote(doc document) (models.TickerResult, error) {
	q, err := doc.object(globalQuoteKey)
	if err != nil {
		return models.TickerResult{}, err
	}
	symbol, err := q.str(quoteSymbol)
	if err != nil {
		return models.TickerResult{}, err
	}

	rows := []struct {
		prefix string
		key    string
	}{
		{"Current price: ", quotePrice},
		{"Open: ", quoteOpen},
		{"High: ", quoteHigh},
		{"Low: ", quoteLow},
		{"Volume: ", quoteVolume},
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		v, err := q.str(r.key)
		if err != nil {
			return models.TickerResult{}, err
		}
		lines = append(lines, r.prefix+v)
	}
	return models.TickerResult{Label: symbol, Lines: lines, Change: change(q[quoteOpen], q[quotePrice])}, nil
}

// renderSeries emits the newest limit bars of the named series. withDates
// prefixes every bar with its date line. An empty series renders the label
// alone unless required is set.
func renderSeries(doc document, key string, limit int, withDates, required bool) (models.TickerResult, error) {
	meta, err := doc.object(metaDataKey)
	if err != nil {
		return models.TickerResult{}, err
	}
	symbol, err := meta.str(metaSymbolKey)
	if err != nil {
		return models.TickerResult{}, err
	}
	series, err := doc.series(key)
	if err != nil {
		return models.TickerResult{}, err
	}
	if len(series) == 0 && required {
		return models.TickerResult{}, fmt.Errorf("series %q is empty", key)
	}

	bars, err := newestBars(series, limit)
	if err != nil {
		return models.TickerResult{}, err
	}
	lines := make([]string, 0, len(bars)*6)
	for _, b := range bars {
		if withDates {
			lines = append(lines, b.Date)
		}
		lines = append(lines, b.lines()...)
	}
	tr := models.TickerResult{Label: symbol, Lines: lines}
	if len(bars) > 0 {
		tr.Change = change(bars[len(bars)-1].Open, bars[0].Close)
	}
	return tr, nil
}

func malformed(cause error) error {
	return models.NewCommandError(models.KindMalformedReply, "reply could not be formatted").WithCause(cause)
}

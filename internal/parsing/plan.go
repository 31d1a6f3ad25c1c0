package parsing

import (
	"github.com/dyike/StockBot/internal/keywords"
	"github.com/dyike/StockBot/internal/models"
)

// timeFunctions and rangeFunctions are indexed by selector position.
var (
	timeFunctions = [...]string{
		keywords.TimeCurrent:   models.FunctionGlobalQuote,
		keywords.TimeYesterday: models.FunctionDailyAdjusted,
	}
	rangeFunctions = [...]string{
		keywords.RangeLastWeek:  models.FunctionDailyAdjusted,
		keywords.RangeLastMonth: models.FunctionWeeklyAdjusted,
		keywords.RangeLastYear:  models.FunctionMonthlyAdjusted,
	}
)

// Planner builds query plans against one catalog and API key. It holds no
// mutable state and is safe for concurrent use.
type Planner struct {
	catalog *keywords.Catalog
	apiKey  string
}

// NewPlanner creates a planner.
func NewPlanner(catalog *keywords.Catalog, apiKey string) *Planner {
	return &Planner{catalog: catalog, apiKey: apiKey}
}

// BuildPlan decides the query type for the parsed keywords and emits one
// request per ticker.
func (p *Planner) BuildPlan(kws, tickers []string) (*models.QueryPlan, error) {
	if len(kws) == 0 {
		return nil, models.NewCommandError(models.KindNoKeywordsProvided, "call contained no keywords")
	}

	first := kws[0]
	switch {
	case first == keywords.OverviewKeyword || p.catalog.IsFixed(first):
		return p.overviewPlan(kws, tickers)
	case p.catalog.IsModifiable(first):
		return p.modifierPlan(kws, tickers)
	default:
		return nil, models.NewCommandError(models.KindNoKeywordsProvided, "%q is not a keyword", first)
	}
}

// ParseAndPlan runs Parse followed by BuildPlan.
func (p *Planner) ParseAndPlan(text string) (*models.QueryPlan, error) {
	in, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return p.BuildPlan(in.Keywords, in.Tickers)
}

func (p *Planner) overviewPlan(kws, tickers []string) (*models.QueryPlan, error) {
	all := kws[0] == keywords.OverviewKeyword
	if !all {
		for _, kw := range kws {
			if !p.catalog.IsFixed(kw) {
				return nil, models.NewCommandError(models.KindInvalidKeywordMix, "%q is not a fixed keyword", kw)
			}
		}
	}

	requested := make(map[string]bool, len(kws))
	for _, kw := range kws {
		requested[kw] = true
	}
	matrix := make(models.OptionMatrix, len(p.catalog.Keywords))
	for i, kw := range p.catalog.Keywords {
		matrix[i] = all || requested[kw]
	}

	return &models.QueryPlan{
		Requests: p.requests(models.FunctionOverview, tickers),
		Type:     models.QueryOverview,
		Selector: matrix,
	}, nil
}

func (p *Planner) modifierPlan(kws, tickers []string) (*models.QueryPlan, error) {
	if len(kws) != 2 {
		return nil, models.NewCommandError(models.KindBadArgumentCount,
			"%q takes exactly one modifier, got %d tokens", kws[0], len(kws))
	}

	mod := kws[1]
	if i := p.catalog.TimeIndex(mod); i >= 0 {
		return &models.QueryPlan{
			Requests: p.requests(timeFunctions[i], tickers),
			Type:     models.QueryRealtime,
			Selector: models.Modifier(mod),
		}, nil
	}
	if i := p.catalog.RangeIndex(mod); i >= 0 {
		return &models.QueryPlan{
			Requests: p.requests(rangeFunctions[i], tickers),
			Type:     models.QueryHistorical,
			Selector: models.Modifier(mod),
		}, nil
	}
	return nil, models.NewCommandError(models.KindInvalidKeywordMix, "%q is not a time or range modifier", mod)
}

func (p *Planner) requests(function string, tickers []string) []models.RequestParams {
	reqs := make([]models.RequestParams, 0, len(tickers))
	for _, ticker := range tickers {
		reqs = append(reqs, models.RequestParams{
			Function: function,
			Symbol:   ticker,
			APIKey:   p.apiKey,
		})
	}
	return reqs
}

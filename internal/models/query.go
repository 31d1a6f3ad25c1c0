package models

import (
	"encoding/json"
	"fmt"
)

// QueryType decides which upstream function family a plan calls and how the
// replies are formatted.
type QueryType int

const (
	QueryOverview   QueryType = 1
	QueryRealtime   QueryType = 2
	QueryHistorical QueryType = 3
)

func (t QueryType) String() string {
	switch t {
	case QueryOverview:
		return "overview"
	case QueryRealtime:
		return "realtime"
	case QueryHistorical:
		return "historical"
	default:
		return fmt.Sprintf("QueryType(%d)", int(t))
	}
}

// Alpha Vantage function names
const (
	FunctionOverview        = "OVERVIEW"
	FunctionGlobalQuote     = "GLOBAL_QUOTE"
	FunctionDailyAdjusted   = "TIME_SERIES_DAILY_ADJUSTED"
	FunctionWeeklyAdjusted  = "TIME_SERIES_WEEKLY_ADJUSTED"
	FunctionMonthlyAdjusted = "TIME_SERIES_MONTHLY_ADJUSTED"
)

// ParsedInput is the keyword and ticker lists split out of a user command.
type ParsedInput struct {
	Keywords []string `json:"keywords"`
	Tickers  []string `json:"tickers"`
}

// RequestParams is one upstream call. One instance exists per ticker per plan.
type RequestParams struct {
	Function string `json:"function"`
	Symbol   string `json:"symbol"`
	APIKey   string `json:"-"`
}

// Values returns the query string parameters of the call.
func (p RequestParams) Values() map[string]string {
	return map[string]string{
		"function": p.Function,
		"symbol":   p.Symbol,
		"apikey":   p.APIKey,
	}
}

// Selector tells the formatter what to extract from the replies. It is either
// an OptionMatrix (overview plans) or a Modifier (realtime/historical plans).
type Selector interface {
	isSelector()
}

// OptionMatrix has one flag per fixed keyword, in catalog order.
type OptionMatrix []bool

func (OptionMatrix) isSelector() {}

// Modifier is the time or range selector token of a modifiable-keyword call.
type Modifier string

func (Modifier) isSelector() {}

// QueryPlan is the output of the plan builder.
type QueryPlan struct {
	Requests []RequestParams `json:"requests"`
	Type     QueryType       `json:"type"`
	Selector Selector        `json:"selector"`
}

// RawReply is one undecoded upstream JSON document.
type RawReply = json.RawMessage

// TickerResult is the formatted output for one ticker. Change is the exact
// close minus open over the rendered bars (price minus open for a quote); it
// is empty for overviews and for values that are not numbers.
type TickerResult struct {
	Label  string   `json:"label"`
	Lines  []string `json:"lines"`
	Change string   `json:"change,omitempty"`
}

// FormattedResult holds one TickerResult per reply, in request order.
type FormattedResult []TickerResult

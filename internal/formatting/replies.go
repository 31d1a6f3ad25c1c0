package formatting

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Upstream document keys
const (
	globalQuoteKey = "Global Quote"
	metaDataKey    = "Meta Data"
	metaSymbolKey  = "2. Symbol"

	dailySeriesKey   = "Time Series (Daily)"
	weeklySeriesKey  = "Weekly Adjusted Time Series"
	monthlySeriesKey = "Monthly Adjusted Time Series"
)

// Global Quote fields
const (
	quoteSymbol = "01. symbol"
	quoteOpen   = "02. open"
	quoteHigh   = "03. high"
	quoteLow    = "04. low"
	quotePrice  = "05. price"
	quoteVolume = "06. volume"
)

// Time series bar fields
const (
	barOpen   = "1. open"
	barHigh   = "2. high"
	barLow    = "3. low"
	barClose  = "4. close"
	barVolume = "6. volume"
)

// document is a decoded top-level reply whose values are decoded lazily.
type document map[string]json.RawMessage

func decodeDocument(raw []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("reply is not a JSON object")
	}
	return doc, nil
}

// str returns a string-valued field.
func (d document) str(key string) (string, error) {
	raw, ok := d[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q is not a string: %w", key, err)
	}
	return s, nil
}

// object returns a nested object whose values are all strings.
func (d document) object(key string) (fields, error) {
	raw, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("missing object %q", key)
	}
	var obj fields
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("object %q: %w", key, err)
	}
	if obj == nil {
		return nil, fmt.Errorf("object %q is null", key)
	}
	return obj, nil
}

// series returns the named time series keyed by date.
func (d document) series(key string) (map[string]fields, error) {
	raw, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("missing series %q", key)
	}
	var s map[string]fields
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("series %q: %w", key, err)
	}
	return s, nil
}

// fields is a flat object of string values such as a quote or a bar.
type fields map[string]string

func (f fields) str(key string) (string, error) {
	v, ok := f[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	return v, nil
}

// change returns to minus from with exact decimal arithmetic, or "" when
// either value is not a number.
func change(from, to string) string {
	a, err := decimal.NewFromString(strings.TrimSpace(from))
	if err != nil {
		return ""
	}
	b, err := decimal.NewFromString(strings.TrimSpace(to))
	if err != nil {
		return ""
	}
	return b.Sub(a).String()
}

// bar is one time series entry rendered for display.
type bar struct {
	Date   string
	Open   string
	Close  string
	High   string
	Low    string
	Volume string
}

func parseBar(date string, f fields) (bar, error) {
	b := bar{Date: date}
	var err error
	if b.Open, err = f.str(barOpen); err != nil {
		return bar{}, fmt.Errorf("%s: %w", date, err)
	}
	if b.Close, err = f.str(barClose); err != nil {
		return bar{}, fmt.Errorf("%s: %w", date, err)
	}
	if b.High, err = f.str(barHigh); err != nil {
		return bar{}, fmt.Errorf("%s: %w", date, err)
	}
	if b.Low, err = f.str(barLow); err != nil {
		return bar{}, fmt.Errorf("%s: %w", date, err)
	}
	if b.Volume, err = f.str(barVolume); err != nil {
		return bar{}, fmt.Errorf("%s: %w", date, err)
	}
	return b, nil
}

func (b bar) lines() []string {
	return []string{
		"Open: " + b.Open,
		"Close: " + b.Close,
		"High: " + b.High,
		"Low: " + b.Low,
		"Volume: " + b.Volume,
	}
}

// newestBars returns up to limit bars, most recent first. Dates are ISO
// formatted so lexical order is chronological order.
func newestBars(series map[string]fields, limit int) ([]bar, error) {
	dates := make([]string, 0, len(series))
	for date := range series {
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	if len(dates) > limit {
		dates = dates[:limit]
	}

	bars := make([]bar, 0, len(dates))
	for _, date := range dates {
		b, err := parseBar(date, series[date])
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, nil
}

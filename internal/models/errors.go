package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a user command can end in.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindMalformedInput     ErrorKind = "MALFORMED_INPUT"
	KindInvalidKeywordMix  ErrorKind = "INVALID_KEYWORD_MIX"
	KindBadArgumentCount   ErrorKind = "BAD_ARGUMENT_COUNT"
	KindNoKeywordsProvided ErrorKind = "NO_KEYWORDS_PROVIDED"

	// Gateway errors
	KindGatewayHTTP        ErrorKind = "GATEWAY_HTTP_ERROR"
	KindGatewayEmpty       ErrorKind = "GATEWAY_EMPTY_RESULT"
	KindGatewayNotice      ErrorKind = "GATEWAY_NOTICE"
	KindGatewayUnavailable ErrorKind = "GATEWAY_UNAVAILABLE"

	// A successful reply did not have the shape its query type promises.
	KindMalformedReply ErrorKind = "MALFORMED_REPLY"
)

// CommandError is the tagged error returned by the parser, planner, gateway
// and formatter. StatusCode is only set for KindGatewayHTTP.
type CommandError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *CommandError) Error() string {
	msg := e.Message
	if e.Kind == KindGatewayHTTP {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *CommandError) Unwrap() error {
	return e.Cause
}

// Is matches another *CommandError by kind, so errors.Is(err, ErrNoKeywords) works
// on wrapped values.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewCommandError creates an error of the given kind.
func NewCommandError(kind ErrorKind, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause attaches the underlying error.
func (e *CommandError) WithCause(cause error) *CommandError {
	e.Cause = cause
	return e
}

// GatewayHTTPError reports a non-200 reply from the market-data API.
func GatewayHTTPError(code int) *CommandError {
	return &CommandError{
		Kind:       KindGatewayHTTP,
		Message:    "market data API returned a non-200 status",
		StatusCode: code,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrMalformedInput     = &CommandError{Kind: KindMalformedInput, Message: "input must look like 'keywords: tickers'"}
	ErrInvalidKeywordMix  = &CommandError{Kind: KindInvalidKeywordMix, Message: "invalid keywords in call"}
	ErrBadArgumentCount   = &CommandError{Kind: KindBadArgumentCount, Message: "modifiable keyword needs exactly one modifier"}
	ErrNoKeywordsProvided = &CommandError{Kind: KindNoKeywordsProvided, Message: "call contained no keywords"}
	ErrGatewayEmpty       = &CommandError{Kind: KindGatewayEmpty, Message: "market data API returned an empty result"}
	ErrMalformedReply     = &CommandError{Kind: KindMalformedReply, Message: "reply could not be formatted"}
)

// KindOf returns the kind of the first CommandError in err's chain, or
// KindNone when there is none.
func KindOf(err error) ErrorKind {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Kind
	}
	return KindNone
}

// AsCommandError extracts the CommandError from err's chain.
func AsCommandError(err error) (*CommandError, bool) {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr, true
	}
	return nil, false
}

package service

import (
	"fmt"

	"github.com/dyike/StockBot/internal/models"
)

const (
	msgMalformedInput     = "INFO: The input format was invalid."
	msgInvalidKeywordMix  = "INFO: There were invalid keywords in the input."
	msgBadArgumentCount   = "INFO: Keyword count is not correct."
	msgNoKeywordsProvided = "INFO: Your call must contain keywords! Please check your input."
	msgGatewayEmpty       = "INFO: A stock ticker may be misspelt, or does not exist."
	msgGatewayHTTP        = "INFO: There was an issue with the Alpha Vantage API. HTTP code: %d"
	msgGatewayNotice      = "INFO: The Alpha Vantage API declined the request: %s"
	msgGatewayUnavailable = "INFO: The Alpha Vantage API could not be reached."
	msgMalformedReply     = "INFO: The API response could not be formatted."
	msgInternal           = "INFO: Something went wrong while handling your request."
)

// UserMessage returns the sentence shown to the user for err.
func UserMessage(err error) string {
	cmdErr, ok := models.AsCommandError(err)
	if !ok {
		return msgInternal
	}
	switch cmdErr.Kind {
	case models.KindMalformedInput:
		return msgMalformedInput
	case models.KindInvalidKeywordMix:
		return msgInvalidKeywordMix
	case models.KindBadArgumentCount:
		return msgBadArgumentCount
	case models.KindNoKeywordsProvided:
		return msgNoKeywordsProvided
	case models.KindGatewayEmpty:
		return msgGatewayEmpty
	case models.KindGatewayHTTP:
		return fmt.Sprintf(msgGatewayHTTP, cmdErr.StatusCode)
	case models.KindGatewayNotice:
		return fmt.Sprintf(msgGatewayNotice, cmdErr.Message)
	case models.KindGatewayUnavailable:
		return msgGatewayUnavailable
	case models.KindMalformedReply:
		return msgMalformedReply
	}
	return msgInternal
}

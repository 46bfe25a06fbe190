package raffle

import "errors"

type Kind int

const (
	KindUnknown Kind = iota
	KindTiming
	KindAuthorization
	KindSequencing
	KindResource
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTiming:
		return "timing"
	case KindAuthorization:
		return "authorization"
	case KindSequencing:
		return "sequencing"
	case KindResource:
		return "resource"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a program error. Compare with errors.Is against the sentinels below.
type Error struct {
	Code    string
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code string, kind Kind, message string) *Error {
	return &Error{Code: code, Kind: kind, Message: message}
}

var (
	ErrSaleNotStarted = newError("SaleNotStarted", KindTiming, "ticket sale has not started")
	ErrSaleEnded      = newError("SaleEnded", KindTiming, "ticket sale has ended")
	ErrSaleNotEnded   = newError("SaleNotEnded", KindTiming, "ticket sale has not ended")

	ErrUnauthorized = newError("Unauthorized", KindAuthorization, "caller is not the lottery authority")
	ErrNotWinner    = newError("NotWinner", KindAuthorization, "ticket is not the winning ticket of the claimant")

	ErrAlreadyInitialized         = newError("AlreadyInitialized", KindSequencing, "configuration already initialized")
	ErrAlreadyInitializedForRound = newError("AlreadyInitializedForRound", KindSequencing, "lottery already initialized for this round")
	ErrRoundStillActive           = newError("RoundStillActive", KindSequencing, "current round is not settled")
	ErrAlreadyCommitted           = newError("AlreadyCommitted", KindSequencing, "randomness already requested for this round")
	ErrStaleRequest               = newError("StaleRequest", KindSequencing, "randomness request does not match the current round")
	ErrWinnerAlreadyChosen        = newError("WinnerAlreadyChosen", KindSequencing, "winner already chosen")
	ErrWinnerNotChosen            = newError("WinnerNotChosen", KindSequencing, "winner not chosen")
	ErrAlreadyClaimed             = newError("AlreadyClaimed", KindSequencing, "winnings already claimed")

	ErrInsufficientFunds = newError("InsufficientFunds", KindResource, "insufficient funds")
	ErrInvalidAccount    = newError("InvalidAccount", KindResource, "invalid token account")
	ErrNoTickets         = newError("NoTickets", KindResource, "no tickets sold this round")

	ErrInvalidSaleWindow  = newError("InvalidSaleWindow", KindValidation, "sale end must be after sale start")
	ErrInvalidTicketPrice = newError("InvalidTicketPrice", KindValidation, "ticket price must be positive and at most 2^63-1")

	ErrNotInitialized        = newError("NotInitialized", KindNotFound, "configuration not initialized")
	ErrLotteryNotInitialized = newError("LotteryNotInitialized", KindNotFound, "lottery not initialized")
	ErrTicketNotFound        = newError("TicketNotFound", KindNotFound, "ticket not found")
)

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

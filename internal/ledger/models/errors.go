package models

import (
	"errors"

	"memoledger/internal/identity"
	dErrors "memoledger/pkg/domain-errors"
)

// Error kinds surfaced by the ledger. Each is returned wrapped in a domain error
// (see Reject), so callers can match the kind with errors.Is and the category
// with dErrors.HasCode.
var (
	ErrIdentifierTooLong        = identity.ErrIdentifierTooLong
	ErrDuplicateRegistration    = errors.New("account already registered")
	ErrAccountNotFound          = errors.New("account not found")
	ErrDailyLimitReached        = errors.New("daily limit reached")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrSameUserConnection       = errors.New("connection parties must differ")
	ErrInvalidBeneficiary       = errors.New("beneficiary must not be a connection party")
	ErrDuplicateConnection      = errors.New("connection already exists")
	ErrConnectionNotFound       = errors.New("connection not found")
	ErrUnauthorizedCaller       = errors.New("caller is not a party to the connection")
	ErrInvalidSecret            = errors.New("revealed secret does not match commitment")
	ErrMalformedSecret          = errors.New("secret must be between 1 and 64 bytes")
	ErrAlreadyUnlocked          = errors.New("caller already unlocked")
	ErrConnectionFullyUnlocked  = errors.New("connection already fully unlocked")
	ErrLedgerNotInitialized     = errors.New("ledger not initialized")
	ErrLedgerAlreadyInitialized = errors.New("ledger already initialized")
	ErrCounterOverflow          = errors.New("counter overflow")
)

var kindCodes = map[error]dErrors.Code{
	ErrIdentifierTooLong:        dErrors.CodeInvalidInput,
	ErrInvalidAmount:            dErrors.CodeInvalidInput,
	ErrSameUserConnection:       dErrors.CodeInvalidInput,
	ErrInvalidBeneficiary:       dErrors.CodeInvalidInput,
	ErrMalformedSecret:          dErrors.CodeInvalidInput,
	ErrDuplicateRegistration:    dErrors.CodeConflict,
	ErrDuplicateConnection:      dErrors.CodeConflict,
	ErrAlreadyUnlocked:          dErrors.CodeConflict,
	ErrConnectionFullyUnlocked:  dErrors.CodeConflict,
	ErrLedgerAlreadyInitialized: dErrors.CodeConflict,
	ErrDailyLimitReached:        dErrors.CodeLimitExceeded,
	ErrInsufficientBalance:      dErrors.CodePolicyViolation,
	ErrLedgerNotInitialized:     dErrors.CodePolicyViolation,
	ErrUnauthorizedCaller:       dErrors.CodeForbidden,
	ErrInvalidSecret:            dErrors.CodeForbidden,
	ErrAccountNotFound:          dErrors.CodeNotFound,
	ErrConnectionNotFound:       dErrors.CodeNotFound,
	ErrCounterOverflow:          dErrors.CodeInvariantViolation,
}

// Reject wraps an error kind in a domain error carrying its category.
func Reject(kind error) error {
	code, ok := kindCodes[kind]
	if !ok {
		code = dErrors.CodeInternal
	}
	return dErrors.Wrap(kind, code, kind.Error())
}

func addCounter(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, Reject(ErrCounterOverflow)
	}
	return sum, nil
}

package core

import (
	"errors"
	"fmt"
)

// Machine-readable error codes surfaced to API callers.
const (
	CodeValidation          = "validation_failed"
	CodeNotFound            = "not_found"
	CodeInsufficientBalance = "insufficient_balance"
	CodeTransactionFailed   = "transaction_failed"
	CodeSyncWarning         = "sync_warning"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
)

// CodedError is implemented by every error of the ledger taxonomy.
type CodedError interface {
	error
	Code() string
}

// ValidationError reports malformed input. Nothing was persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return CodeValidation }

// NotFoundError reports a missing resource, or one not owned by the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Code() string { return CodeNotFound }

// InsufficientBalanceError rejects a contribution larger than the available
// balance.
type InsufficientBalanceError struct {
	Requested Money
	Available Money
}

// Shortfall is how much the request exceeds the available balance.
func (e *InsufficientBalanceError) Shortfall() Money {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %s, available %s, shortfall %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2), e.Shortfall().StringFixed(2))
}

func (e *InsufficientBalanceError) Code() string { return CodeInsufficientBalance }

// TransactionFailure wraps any error that aborted a multi-write transaction.
// None of the transaction's writes are visible.
type TransactionFailure struct {
	Op  string
	Err error
}

func (e *TransactionFailure) Error() string {
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionFailure) Unwrap() error { return e.Err }

func (e *TransactionFailure) Code() string { return CodeTransactionFailed }

// SynchronizationWarning is a non-fatal failure to realign a source's entries
// after the source edit itself was committed.
type SynchronizationWarning struct {
	SourceID string
	Change   string
	Err      error
}

func (e *SynchronizationWarning) Error() string {
	return fmt.Sprintf("synchronize entries of source %s (%s): %v", e.SourceID, e.Change, e.Err)
}

func (e *SynchronizationWarning) Unwrap() error { return e.Err }

func (e *SynchronizationWarning) Code() string { return CodeSyncWarning }

// ErrorCode returns the taxonomy code of err, or "internal" when err is not
// part of it. Wrapped errors are unwrapped; a TransactionFailure that wraps a
// coded cause reports the cause's code.
func ErrorCode(err error) string {
	var tf *TransactionFailure
	if errors.As(err, &tf) {
		var inner CodedError
		if errors.As(tf.Err, &inner) {
			return inner.Code()
		}
		return tf.Code()
	}
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return "internal"
}

package txbuilder

import (
	"errors"
	"fmt"
)

// Stage is a point in the linear issuance state machine.
type Stage int

const (
	StageNone Stage = iota
	StageDraft
	StageMetadataAttached
	StageSigned
	StageSubmitted
)

func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageDraft:
		return "draft"
	case StageMetadataAttached:
		return "metadata_attached"
	case StageSigned:
		return "signed"
	case StageSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoUTXOs           = errors.New("wallet has no spendable ADA-only outputs")
	ErrSigning           = errors.New("signing failed")
	ErrSubmission        = errors.New("submission failed")
	ErrOutOfOrder        = errors.New("stage out of order")
	ErrTooLarge          = errors.New("transaction exceeds max size")
)

// StageError reports the stage that failed. Everything before it completed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("txbuilder %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// LastCompleted is the stage reached before the failure.
func (e *StageError) LastCompleted() Stage {
	if e.Stage <= StageDraft {
		return StageNone
	}
	return e.Stage - 1
}

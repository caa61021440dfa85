// Package errs defines the typed failures returned by the game engine.
//
// Every engine operation reports one of three kinds: a validation failure
// (the request itself is malformed), a state failure (the request is well
// formed but the current game state does not allow it) or a persistence
// failure (the entity store could not read or write a record). Validation
// and state failures never change state. Persistence failures discard the
// in-memory mutation that triggered them.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindState
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a classified engine failure. Two errors are considered equal by
// errors.Is when their codes match, so callers compare against the exported
// sentinels regardless of the detail message.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Msg = fmt.Sprintf(format, args...)
	return &c
}

const (
	CodeInvalidAsset          = "INVALID_ASSET"
	CodeInvalidUnit           = "INVALID_UNIT"
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeInvalidName           = "INVALID_NAME"
	CodeInvalidRanking        = "INVALID_RANKING"
	CodeInsufficientFunds     = "INSUFFICIENT_FUNDS"
	CodeInsufficientMaterials = "INSUFFICIENT_MATERIALS"
	CodeSelfAttack            = "SELF_ATTACK"
	CodeAttackerUnarmed       = "ATTACKER_UNARMED"
	CodeDefenderUnarmed       = "DEFENDER_UNARMED"
	CodeAlreadyInAlliance     = "ALREADY_IN_ALLIANCE"
	CodeNameTaken             = "NAME_TAKEN"
	CodeNotFound              = "NOT_FOUND"
	CodeNotInAlliance         = "NOT_IN_ALLIANCE"
	CodeNotOwner              = "NOT_OWNER"
	CodeQuestNotFound         = "QUEST_NOT_FOUND"
	CodeQuestNotComplete      = "QUEST_NOT_COMPLETE"
	CodeQuestClaimed          = "QUEST_CLAIMED"
	CodePersistence           = "PERSISTENCE"
)

var (
	ErrInvalidAsset          = &Error{Kind: KindValidation, Code: CodeInvalidAsset, Msg: "unknown asset"}
	ErrInvalidUnit           = &Error{Kind: KindValidation, Code: CodeInvalidUnit, Msg: "unknown unit"}
	ErrInvalidQuantity       = &Error{Kind: KindValidation, Code: CodeInvalidQuantity, Msg: "quantity must be positive"}
	ErrInvalidName           = &Error{Kind: KindValidation, Code: CodeInvalidName, Msg: "invalid alliance name"}
	ErrInvalidRanking        = &Error{Kind: KindValidation, Code: CodeInvalidRanking, Msg: "unknown leaderboard ranking"}
	ErrSelfAttack            = &Error{Kind: KindValidation, Code: CodeSelfAttack, Msg: "cannot attack yourself"}
	ErrNotFound              = &Error{Kind: KindValidation, Code: CodeNotFound, Msg: "alliance not found"}
	ErrInsufficientFunds     = &Error{Kind: KindState, Code: CodeInsufficientFunds, Msg: "not enough points"}
	ErrInsufficientMaterials = &Error{Kind: KindState, Code: CodeInsufficientMaterials, Msg: "not enough materials"}
	ErrAttackerUnarmed       = &Error{Kind: KindState, Code: CodeAttackerUnarmed, Msg: "attacker has no military power"}
	ErrDefenderUnarmed       = &Error{Kind: KindState, Code: CodeDefenderUnarmed, Msg: "defender has no military power"}
	ErrAlreadyInAlliance     = &Error{Kind: KindState, Code: CodeAlreadyInAlliance, Msg: "already in an alliance"}
	ErrNameTaken             = &Error{Kind: KindState, Code: CodeNameTaken, Msg: "alliance name already taken"}
	ErrNotInAlliance         = &Error{Kind: KindState, Code: CodeNotInAlliance, Msg: "not in an alliance"}
	ErrNotOwner              = &Error{Kind: KindState, Code: CodeNotOwner, Msg: "only the chat owner can do this"}
	ErrQuestNotFound         = &Error{Kind: KindValidation, Code: CodeQuestNotFound, Msg: "unknown quest"}
	ErrQuestNotComplete      = &Error{Kind: KindState, Code: CodeQuestNotComplete, Msg: "quest is not complete"}
	ErrQuestClaimed          = &Error{Kind: KindState, Code: CodeQuestClaimed, Msg: "quest reward already claimed"}
	ErrPersistence           = &Error{Kind: KindPersistence, Code: CodePersistence, Msg: "persistence failure"}
)

// Persistence classifies a store failure.
func Persistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistence, Msg: op, Err: err}
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf reports the reason code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

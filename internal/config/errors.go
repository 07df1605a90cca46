package config

import (
	"errors"
	"fmt"
)

// Stage identifies which loading step produced an error.
type Stage string

const (
	StageFile        Stage = "file"
	StageEnvironment Stage = "environment"
	StageDecode      Stage = "decode"
	StageValidate    Stage = "validate"
)

// Sentinel errors matched with errors.Is against an *Error.
var (
	// ErrFile indicates the configuration file exists but could not be read or parsed.
	ErrFile = errors.New("configuration file error")
	// ErrEnvironment indicates the environment layer could not be bound.
	ErrEnvironment = errors.New("environment configuration error")
	// ErrDecode indicates a type mismatch between a configured value and its field.
	ErrDecode = errors.New("configuration decode error")
	// ErrValidate indicates a required field is missing or a value is out of range.
	ErrValidate = errors.New("configuration validation error")
)

// Error is returned by Load for every failure. It unwraps to both the stage
// sentinel and the underlying cause.
type Error struct {
	Stage Stage
	Err   error
}

func newError(stage Stage, err error) *Error {
	return &Error{Stage: stage, Err: err}
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *Error) sentinel() error {
	switch e.Stage {
	case StageFile:
		return ErrFile
	case StageEnvironment:
		return ErrEnvironment
	case StageDecode:
		return ErrDecode
	default:
		return ErrValidate
	}
}

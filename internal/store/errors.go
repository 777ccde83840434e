package store

import (
	"errors"
	"fmt"
)

// ErrCharacterNotFound is returned by writes that reference a missing character.
var ErrCharacterNotFound = errors.New("character not found")

// ErrDuplicateCharacter is returned when a world already has a character with
// the requested name.
var ErrDuplicateCharacter = errors.New("character already exists")

// ReadError wraps a storage failure while reading.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("store read %s: %v", e.Op, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError wraps a storage failure while writing. The transaction that
// produced it has been rolled back.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func NewReadError(op string, err error) error {
	return &ReadError{Op: op, Err: err}
}

func NewWriteError(op string, err error) error {
	return &WriteError{Op: op, Err: err}
}

// IsInfrastructure reports whether err is a storage read or write failure.
func IsInfrastructure(err error) bool {
	var rerr *ReadError
	var werr *WriteError
	return errors.As(err, &rerr) || errors.As(err, &werr)
}

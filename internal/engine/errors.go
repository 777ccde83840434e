package engine

import (
	"errors"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

var (
	// ErrUnknownChannel is returned for a channel the grammar has no
	// multiplier for.
	ErrUnknownChannel = errors.New("unknown chat channel")
	// ErrCharacterNotFound is returned when a participant does not exist in
	// the requested world.
	ErrCharacterNotFound = store.ErrCharacterNotFound
	// ErrSameCharacter is returned when the speaker is also the listener.
	ErrSameCharacter = errors.New("speaker and listener must be different characters")
)

// IsDomainError reports whether err is a caller mistake rather than a
// configuration or storage failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrUnknownChannel) ||
		errors.Is(err, ErrCharacterNotFound) ||
		errors.Is(err, ErrSameCharacter) ||
		errors.Is(err, world.ErrUnknownWorld)
}

// IsConfigError reports whether err comes from a missing or malformed
// resolution grammar.
func IsConfigError(err error) bool {
	var verr *grammar.ValidationError
	return errors.Is(err, grammar.ErrNotFound) || errors.As(err, &verr)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsDomainError(err):
		return "domain_error"
	case IsConfigError(err):
		return "config_error"
	case store.IsInfrastructure(err):
		return "store_error"
	}
	return "error"
}

// Package engine turns one chat interaction into persisted axis changes. It
// reads both characters' scores, applies the world's grammar rule for every
// axis, clamps the results and commits them as one event. A mirrored line
// goes to the audit ledger after the commit when one is configured.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/resolver"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

// EventTypeChat is the event type recorded for chat resolutions.
const EventTypeChat = "chat"

// GrammarSource resolves a world id to its cached grammar.
type GrammarSource interface {
	Grammar(worldID string) (*grammar.ResolutionGrammar, error)
}

// Transactor runs a read-modify-write cycle atomically.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
}

// AuditLedger receives a best-effort copy of every committed resolution.
type AuditLedger interface {
	AppendEvent(ctx context.Context, worldID, eventType string, data any, fingerprint string, meta map[string]string) (string, error)
}

type Engine struct {
	grammars GrammarSource
	store    Transactor
	ledger   AuditLedger
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLedger(l AuditLedger) Option {
	return func(e *Engine) { e.ledger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(grammars GrammarSource, st Transactor, opts ...Option) *Engine {
	e := &Engine{
		grammars: grammars,
		store:    st,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveChatInteraction resolves one message from speaker to listener on
// channel. Configuration and domain failures return before anything is
// written. A storage failure rolls the whole interaction back.
func (e *Engine) ResolveChatInteraction(ctx context.Context, worldID string, speakerID, listenerID int64, channel, message string) (*AxisResolutionResult, error) {
	result, err := e.resolveChat(ctx, worldID, speakerID, listenerID, channel, message)

	worldLabel, channelLabel := worldID, channel
	if errors.Is(err, world.ErrUnknownWorld) {
		worldLabel = "unknown"
	}
	if err != nil && IsDomainError(err) && !knownChannel(channel) {
		channelLabel = "unknown"
	}
	e.metrics.observeResolution(worldLabel, channelLabel, err)
	if err != nil {
		return nil, err
	}

	e.metrics.observeDeltas(worldID, result.Speaker.Deltas)
	e.metrics.observeDeltas(worldID, result.Listener.Deltas)
	e.mirror(ctx, result)
	return result, nil
}

func (e *Engine) resolveChat(ctx context.Context, worldID string, speakerID, listenerID int64, channel, message string) (*AxisResolutionResult, error) {
	g, err := e.grammars.Grammar(worldID)
	if err != nil {
		return nil, err
	}
	chat := g.Chat()

	multiplier, ok := chat.Multiplier(channel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}
	if speakerID == listenerID {
		return nil, fmt.Errorf("%w: %d", ErrSameCharacter, speakerID)
	}

	rules := chat.Rules()
	axes := chat.Axes()
	result := &AxisResolutionResult{
		WorldID:        worldID,
		Channel:        channel,
		GrammarVersion: g.Version(),
	}

	err = e.store.InTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		speaker, listener, err := lockParticipants(ctx, tx, worldID, speakerID, listenerID)
		if err != nil {
			return err
		}

		speakerScores, err := tx.AxisScores(ctx, speakerID, axes)
		if err != nil {
			return err
		}
		listenerScores, err := tx.AxisScores(ctx, listenerID, axes)
		if err != nil {
			return err
		}

		result.Snapshot = store.Snapshot{speakerID: speakerScores, listenerID: listenerScores}
		result.Speaker = EntityResolution{CharacterID: speakerID, Name: speaker.Name, Deltas: []AxisDelta{}}
		result.Listener = EntityResolution{CharacterID: listenerID, Name: listener.Name, Deltas: []AxisDelta{}}

		var deltas []store.AxisDelta
		for _, rule := range rules {
			rawSpeaker, rawListener := resolver.Resolve(rule.Resolver, resolver.Input{
				SpeakerScore:    speakerScores[rule.Axis],
				ListenerScore:   listenerScores[rule.Axis],
				BaseMagnitude:   rule.BaseMagnitude,
				Multiplier:      multiplier,
				MinGapThreshold: chat.MinGapThreshold(),
			})
			if d, ok := apply(rule.Axis, speakerScores[rule.Axis], rawSpeaker); ok {
				result.Speaker.Deltas = append(result.Speaker.Deltas, d)
				deltas = append(deltas, toStore(speakerID, d))
			}
			if d, ok := apply(rule.Axis, listenerScores[rule.Axis], rawListener); ok {
				result.Listener.Deltas = append(result.Listener.Deltas, d)
				deltas = append(deltas, toStore(listenerID, d))
			}
		}

		fingerprint, err := Fingerprint(worldID, channel, speakerID, listenerID, result.Snapshot)
		if err != nil {
			return err
		}
		result.FingerprintHash = fingerprint

		metadata := map[string]string{
			"channel":         channel,
			"grammar_version": g.Version(),
			"speaker_name":    speaker.Name,
			"listener_name":   listener.Name,
		}
		if message != "" {
			metadata["message"] = message
		}

		eventID, err := tx.WriteEvent(ctx, store.EventInput{
			WorldID:     worldID,
			EventType:   EventTypeChat,
			Fingerprint: fingerprint,
			OccurredAt:  e.now().UTC(),
			Participants: []store.Participant{
				{CharacterID: speakerID, Role: "speaker"},
				{CharacterID: listenerID, Role: "listener"},
			},
			Snapshot: result.Snapshot,
			Deltas:   deltas,
			Metadata: metadata,
		})
		if err != nil {
			return err
		}
		result.EventID = eventID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockParticipants reads both characters in ascending id order so that two
// interactions over the same pair cannot lock them in opposite orders.
func lockParticipants(ctx context.Context, tx store.Tx, worldID string, speakerID, listenerID int64) (*store.Character, *store.Character, error) {
	first, second := speakerID, listenerID
	if second < first {
		first, second = second, first
	}

	found := make(map[int64]*store.Character, 2)
	for _, id := range []int64{first, second} {
		character, err := tx.Character(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if character == nil || character.WorldID != worldID {
			return nil, nil, fmt.Errorf("%w: %d in world %s", ErrCharacterNotFound, id, worldID)
		}
		found[id] = character
	}
	return found[speakerID], found[listenerID], nil
}

func apply(axis string, old, raw float64) (AxisDelta, bool) {
	updated := resolver.Clamp(old + raw)
	actual := updated - old
	if actual == 0 {
		return AxisDelta{}, false
	}
	return AxisDelta{Axis: axis, OldScore: old, NewScore: updated, Delta: actual}, true
}

func toStore(characterID int64, d AxisDelta) store.AxisDelta {
	return store.AxisDelta{
		CharacterID: characterID,
		Axis:        d.Axis,
		OldScore:    d.OldScore,
		NewScore:    d.NewScore,
		Delta:       d.Delta,
	}
}

// mirror appends the committed result to the audit ledger. Failures are
// logged and counted, never returned.
func (e *Engine) mirror(ctx context.Context, result *AxisResolutionResult) {
	if e.ledger == nil {
		return
	}
	meta := map[string]string{
		"channel":     result.Channel,
		"event_id":    strconv.FormatInt(result.EventID, 10),
		"speaker_id":  strconv.FormatInt(result.Speaker.CharacterID, 10),
		"listener_id": strconv.FormatInt(result.Listener.CharacterID, 10),
	}
	if _, err := e.ledger.AppendEvent(ctx, result.WorldID, EventTypeChat, result, result.FingerprintHash, meta); err != nil {
		e.metrics.observeAuditFailure(result.WorldID)
		e.logger.Warn("audit ledger append failed",
			"world", result.WorldID,
			"event_type", EventTypeChat,
			"fingerprint", result.FingerprintHash,
			"error", err)
	}
}

func knownChannel(channel string) bool {
	for _, c := range grammar.Channels() {
		if string(c) == channel {
			return true
		}
	}
	return false
}

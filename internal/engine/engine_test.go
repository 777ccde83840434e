package engine

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"maps"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

const testPolicy = `
version: "1.0"
interactions:
  chat:
    channel_multipliers: {say: 1.0, yell: 1.5, whisper: 0.5}
    min_gap_threshold: 0.05
    axes:
      demeanor: {resolver: dominance_shift, base_magnitude: 0.03}
      health: {resolver: shared_drain, base_magnitude: 0.01}
      wealth: {resolver: no_effect}
`

type staticGrammars map[string]*grammar.ResolutionGrammar

func (s staticGrammars) Grammar(worldID string) (*grammar.ResolutionGrammar, error) {
	g, ok := s[worldID]
	if !ok {
		return nil, world.ErrUnknownWorld
	}
	return g, nil
}

func mustParse(t *testing.T, policy string) *grammar.ResolutionGrammar {
	t.Helper()
	g, err := grammar.Parse([]byte(policy))
	require.NoError(t, err)
	return g
}

// fakeStore applies a transaction's writes only when fn succeeds.
type fakeStore struct {
	characters map[int64]*store.Character
	scores     map[int64]map[string]float64
	events     []store.EventInput
	writeErr   error
	txCount    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		characters: map[int64]*store.Character{
			1: {ID: 1, WorldID: "pipeworks_web", Name: "Alice"},
			2: {ID: 2, WorldID: "pipeworks_web", Name: "Bob"},
			3: {ID: 3, WorldID: "elsewhere", Name: "Carol"},
		},
		scores: map[int64]map[string]float64{},
	}
}

func (f *fakeStore) set(id int64, axis string, score float64) {
	if f.scores[id] == nil {
		f.scores[id] = map[string]float64{}
	}
	f.scores[id][axis] = score
}

func (f *fakeStore) score(id int64, axis string) float64 {
	if s, ok := f.scores[id][axis]; ok {
		return s
	}
	return store.DefaultScore
}

func (f *fakeStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	f.txCount++
	tx := &fakeTx{parent: f}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, ev := range tx.pending {
		for _, d := range ev.Deltas {
			f.set(d.CharacterID, d.Axis, d.NewScore)
		}
		f.events = append(f.events, ev)
	}
	return nil
}

type fakeTx struct {
	parent  *fakeStore
	pending []store.EventInput
}

func (t *fakeTx) Character(ctx context.Context, id int64) (*store.Character, error) {
	return t.parent.characters[id], nil
}

func (t *fakeTx) AxisScores(ctx context.Context, characterID int64, axes []string) (map[string]float64, error) {
	out := make(map[string]float64, len(axes))
	for _, axis := range axes {
		out[axis] = t.parent.score(characterID, axis)
	}
	return out, nil
}

func (t *fakeTx) WriteEvent(ctx context.Context, in store.EventInput) (int64, error) {
	if t.parent.writeErr != nil {
		return 0, store.NewWriteError("writing axis event", t.parent.writeErr)
	}
	t.pending = append(t.pending, in)
	return int64(len(t.parent.events) + len(t.pending)), nil
}

type recordingLedger struct {
	err     error
	entries []any
}

func (l *recordingLedger) AppendEvent(ctx context.Context, worldID, eventType string, data any, fingerprint string, meta map[string]string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	l.entries = append(l.entries, data)
	return "ledger-id", nil
}

func newTestEngine(t *testing.T, st *fakeStore, opts ...Option) *Engine {
	t.Helper()
	grammars := staticGrammars{"pipeworks_web": mustParse(t, testPolicy)}
	return New(grammars, st, opts...)
}

func findDelta(t *testing.T, deltas []AxisDelta, axis string) (AxisDelta, bool) {
	t.Helper()
	for _, d := range deltas {
		if d.Axis == axis {
			return d, true
		}
	}
	return AxisDelta{}, false
}

func TestDominanceShiftAboveThreshold(t *testing.T) {
	st := newFakeStore()
	st.set(1, "demeanor", 0.80)
	st.set(2, "demeanor", 0.50)

	result, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "hello")
	require.NoError(t, err)

	speaker, ok := findDelta(t, result.Speaker.Deltas, "demeanor")
	require.True(t, ok)
	listener, ok := findDelta(t, result.Listener.Deltas, "demeanor")
	require.True(t, ok)
	assert.InDelta(t, 0.009, speaker.Delta, 1e-12)
	assert.InDelta(t, -0.009, listener.Delta, 1e-12)
	assert.InDelta(t, 0.809, st.score(1, "demeanor"), 1e-12)
	assert.InDelta(t, 0.491, st.score(2, "demeanor"), 1e-12)
}

func TestDominanceShiftBelowThreshold(t *testing.T) {
	st := newFakeStore()
	st.set(1, "demeanor", 0.52)
	st.set(2, "demeanor", 0.50)

	result, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "")
	require.NoError(t, err)

	_, ok := findDelta(t, result.Speaker.Deltas, "demeanor")
	assert.False(t, ok)
	_, ok = findDelta(t, result.Listener.Deltas, "demeanor")
	assert.False(t, ok)
	assert.Equal(t, 0.52, st.score(1, "demeanor"))
}

func TestSharedDrainOnYell(t *testing.T) {
	st := newFakeStore()

	result, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "yell", "HEY")
	require.NoError(t, err)

	speaker, ok := findDelta(t, result.Speaker.Deltas, "health")
	require.True(t, ok)
	listener, ok := findDelta(t, result.Listener.Deltas, "health")
	require.True(t, ok)
	assert.InDelta(t, -0.015, speaker.Delta, 1e-12)
	assert.InDelta(t, -0.015, listener.Delta, 1e-12)
}

func TestClampAtZero(t *testing.T) {
	st := newFakeStore()
	st.set(1, "health", 0.005)

	result, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "")
	require.NoError(t, err)

	speaker, ok := findDelta(t, result.Speaker.Deltas, "health")
	require.True(t, ok)
	assert.Equal(t, 0.0, speaker.NewScore)
	assert.Equal(t, -0.005, speaker.Delta)
	assert.Equal(t, 0.0, st.score(1, "health"))

	st.set(1, "health", 0.0)
	result, err = newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "")
	require.NoError(t, err)
	_, ok = findDelta(t, result.Speaker.Deltas, "health")
	assert.False(t, ok, "a zero applied delta is not recorded")
}

func TestDomainErrorsWriteNothing(t *testing.T) {
	tests := []struct {
		name       string
		worldID    string
		speaker    int64
		listener   int64
		channel    string
		wantErr    error
		wantTxOpen bool
	}{
		{"unknown channel", "pipeworks_web", 1, 2, "shout", ErrUnknownChannel, false},
		{"unknown world", "atlantis", 1, 2, "say", world.ErrUnknownWorld, false},
		{"same character", "pipeworks_web", 1, 1, "say", ErrSameCharacter, false},
		{"missing listener", "pipeworks_web", 1, 99, "say", ErrCharacterNotFound, true},
		{"listener in another world", "pipeworks_web", 1, 3, "say", ErrCharacterNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newFakeStore()
			_, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), tt.worldID, tt.speaker, tt.listener, tt.channel, "")
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsDomainError(err))
			assert.Empty(t, st.events)
			assert.Empty(t, st.scores)
			assert.Equal(t, tt.wantTxOpen, st.txCount > 0)
		})
	}
}

func TestStoreFailureRollsBack(t *testing.T) {
	st := newFakeStore()
	st.writeErr = errors.New("disk full")
	ledger := &recordingLedger{}

	_, err := newTestEngine(t, st, WithLedger(ledger)).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "yell", "")
	require.Error(t, err)
	assert.True(t, store.IsInfrastructure(err))
	assert.False(t, IsDomainError(err))
	assert.Empty(t, st.scores)
	assert.Empty(t, ledger.entries, "nothing is mirrored for a failed commit")
}

func TestLedgerFailureIsNotFatal(t *testing.T) {
	st := newFakeStore()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	e := newTestEngine(t, st,
		WithLedger(&recordingLedger{err: errors.New("lock timeout")}),
		WithLogger(logger),
		WithMetrics(metrics))

	result, err := e.ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, st.events, 1)
	assert.Contains(t, logs.String(), "audit ledger append failed")
	assert.Contains(t, logs.String(), result.FingerprintHash)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.auditFailures.WithLabelValues("pipeworks_web")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("pipeworks_web", "say", "ok")))
}

func TestLedgerReceivesResult(t *testing.T) {
	st := newFakeStore()
	ledger := &recordingLedger{}

	result, err := newTestEngine(t, st, WithLedger(ledger)).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "whisper", "psst")
	require.NoError(t, err)
	require.Len(t, ledger.entries, 1)
	assert.Same(t, result, ledger.entries[0])
}

func TestEventRecordsInteraction(t *testing.T) {
	st := newFakeStore()

	result, err := newTestEngine(t, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 2, 1, "say", "hi")
	require.NoError(t, err)
	require.Len(t, st.events, 1)

	event := st.events[0]
	assert.Equal(t, EventTypeChat, event.EventType)
	assert.Equal(t, result.FingerprintHash, event.Fingerprint)
	assert.Equal(t, []store.Participant{{CharacterID: 2, Role: "speaker"}, {CharacterID: 1, Role: "listener"}}, event.Participants)
	assert.Equal(t, "hi", event.Metadata["message"])
	assert.Equal(t, "say", event.Metadata["channel"])
	assert.Equal(t, "Bob", result.Speaker.Name)

	// Delta order follows grammar axis order, speaker before listener.
	require.Len(t, event.Deltas, 2)
	assert.Equal(t, "health", event.Deltas[0].Axis)
	assert.Equal(t, int64(2), event.Deltas[0].CharacterID)
	assert.Equal(t, int64(1), event.Deltas[1].CharacterID)

	assert.Equal(t, map[string]float64{"demeanor": 0.5, "health": 0.5, "wealth": 0.5}, result.Snapshot[1])
}

func TestEventWrittenWithoutDeltas(t *testing.T) {
	st := newFakeStore()
	grammars := staticGrammars{"pipeworks_web": mustParse(t, `
version: "2"
interactions:
  chat:
    channel_multipliers: {say: 1, yell: 1, whisper: 1}
    min_gap_threshold: 0.05
    axes:
      wealth: {resolver: no_effect}
`)}

	result, err := New(grammars, st).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "")
	require.NoError(t, err)
	assert.Empty(t, result.Speaker.Deltas)
	assert.Empty(t, result.Listener.Deltas)
	require.Len(t, st.events, 1)
	assert.Empty(t, st.events[0].Deltas)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	snapshot := store.Snapshot{1: {"a": 0.5, "b": 0.7}, 2: {"b": 0.1, "a": 0.2}}
	copied := store.Snapshot{2: maps.Clone(snapshot[2]), 1: maps.Clone(snapshot[1])}

	first, err := Fingerprint("w", "say", 1, 2, snapshot)
	require.NoError(t, err)
	second, err := Fingerprint("w", "say", 1, 2, copied)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	other, err := Fingerprint("w", "yell", 1, 2, snapshot)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	swapped, err := Fingerprint("w", "say", 2, 1, snapshot)
	require.NoError(t, err)
	assert.NotEqual(t, first, swapped)
}

func TestSameInputsSameFingerprint(t *testing.T) {
	a, err := newTestEngine(t, newFakeStore()).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "one")
	require.NoError(t, err)
	b, err := newTestEngine(t, newFakeStore()).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "say", "two")
	require.NoError(t, err)
	assert.Equal(t, a.FingerprintHash, b.FingerprintHash, "the message is not part of the fingerprint")
}

func TestUnknownChannelMetricLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	_, err := newTestEngine(t, newFakeStore(), WithMetrics(metrics)).ResolveChatInteraction(context.Background(), "pipeworks_web", 1, 2, "shout", "")
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("pipeworks_web", "unknown", "domain_error")))
}

func TestUnknownWorldMetricLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	eng := newTestEngine(t, newFakeStore(), WithMetrics(metrics))
	for _, id := range []string{"atlantis", "lemuria"} {
		_, err := eng.ResolveChatInteraction(context.Background(), id, 1, 2, "say", "")
		require.ErrorIs(t, err, world.ErrUnknownWorld)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.resolutions.WithLabelValues("unknown", "say", "domain_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.resolutions), "caller-supplied world ids must not create series")
}

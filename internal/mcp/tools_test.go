package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/engine"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/world"
)

type mockResolver struct {
	result *engine.AxisResolutionResult
	err    error

	lastWorld    string
	lastSpeaker  int64
	lastListener int64
	lastChannel  string
	lastMessage  string
}

func (m *mockResolver) ResolveChatInteraction(ctx context.Context, worldID string, speakerID, listenerID int64, channel, message string) (*engine.AxisResolutionResult, error) {
	m.lastWorld = worldID
	m.lastSpeaker = speakerID
	m.lastListener = listenerID
	m.lastChannel = channel
	m.lastMessage = message
	return m.result, m.err
}

type mockCharacterStore struct {
	characters map[string]*store.Character
	events     []store.Event
	eventsErr  error

	lastEventsCharacter int64
	lastEventsLimit     int
}

func (m *mockCharacterStore) GetCharacterByName(ctx context.Context, worldID, name string) (*store.Character, error) {
	return m.characters[worldID+"/"+name], nil
}

func (m *mockCharacterStore) GetCharacterAxisEvents(ctx context.Context, characterID int64, limit int) ([]store.Event, error) {
	m.lastEventsCharacter = characterID
	m.lastEventsLimit = limit
	return m.events, m.eventsErr
}

type mockGrammars map[string]*grammar.ResolutionGrammar

func (m mockGrammars) Grammar(worldID string) (*grammar.ResolutionGrammar, error) {
	g, ok := m[worldID]
	if !ok {
		return nil, world.ErrUnknownWorld
	}
	return g, nil
}

func testCharacters() *mockCharacterStore {
	return &mockCharacterStore{characters: map[string]*store.Character{
		"web/Alice": {ID: 1, WorldID: "web", Name: "Alice"},
		"web/Bob":   {ID: 2, WorldID: "web", Name: "Bob"},
	}}
}

func TestResolveChat(t *testing.T) {
	resolver := &mockResolver{result: &engine.AxisResolutionResult{
		FingerprintHash: "abc",
		WorldID:         "web",
		Channel:         "yell",
		Speaker:         engine.EntityResolution{CharacterID: 1, Name: "Alice"},
		Snapshot:        store.Snapshot{1: {"health": 0.5}, 2: {"health": 0.4}},
	}}
	server := NewServer(resolver, testCharacters(), mockGrammars{}, "test")

	_, output, err := server.handleResolveChat(context.Background(), nil, ResolveChatInput{
		World: "web", Speaker: "Alice", Listener: "Bob", Channel: "yell", Message: "hey",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.FingerprintHash != "abc" || output.Speaker.Name != "Alice" || output.Snapshot["2"]["health"] != 0.4 {
		t.Fatalf("unexpected output: %+v", output)
	}
	if resolver.lastSpeaker != 1 || resolver.lastListener != 2 || resolver.lastChannel != "yell" || resolver.lastMessage != "hey" {
		t.Fatalf("unexpected resolver params: %+v", resolver)
	}
}

func TestResolveChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   ResolveChatInput
		wantErr error
	}{
		{"missing channel", ResolveChatInput{World: "web", Speaker: "Alice", Listener: "Bob"}, nil},
		{"unknown speaker", ResolveChatInput{World: "web", Speaker: "Zed", Listener: "Bob", Channel: "say"}, engine.ErrCharacterNotFound},
		{"listener from another world", ResolveChatInput{World: "other", Speaker: "Alice", Listener: "Bob", Channel: "say"}, engine.ErrCharacterNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			server := NewServer(resolver, testCharacters(), mockGrammars{}, "test")
			_, _, err := server.handleResolveChat(context.Background(), nil, tt.input)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if resolver.lastWorld != "" {
				t.Fatalf("resolver must not be called")
			}
		})
	}
}

func TestGetCharacterAxisEvents(t *testing.T) {
	characters := testCharacters()
	characters.events = []store.Event{{
		ID:           9,
		WorldID:      "web",
		EventType:    "chat",
		OccurredAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Participants: []store.Participant{{CharacterID: 1, Role: "speaker"}, {CharacterID: 2, Role: "listener"}},
		Deltas:       []store.AxisDelta{{CharacterID: 2, Axis: "health", OldScore: 0.5, NewScore: 0.49, Delta: -0.01}},
		Metadata:     map[string]string{"channel": "say"},
	}}
	server := NewServer(&mockResolver{}, characters, mockGrammars{}, "test")

	_, output, err := server.handleGetCharacterAxisEvents(context.Background(), nil, GetCharacterAxisEventsInput{World: "web", Character: "Bob", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.CharacterID != 2 || len(output.Events) != 1 {
		t.Fatalf("unexpected output: %+v", output)
	}
	if output.Events[0].OccurredAt != "2026-01-02T03:04:05Z" || output.Events[0].Metadata["channel"] != "say" {
		t.Fatalf("unexpected event: %+v", output.Events[0])
	}
	if characters.lastEventsCharacter != 2 || characters.lastEventsLimit != 5 {
		t.Fatalf("unexpected store params")
	}
}

func TestGetGrammar(t *testing.T) {
	g, err := grammar.LoadResolutionGrammar("../grammar/testdata/valid")
	if err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	server := NewServer(&mockResolver{}, testCharacters(), mockGrammars{"web": g}, "test")

	_, output, err := server.handleGetGrammar(context.Background(), nil, GetGrammarInput{World: "web"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Version != "1.0" || output.ChannelMultipliers["yell"] != 1.5 || output.MinGapThreshold != 0.05 {
		t.Fatalf("unexpected grammar output: %+v", output)
	}
	if len(output.Axes) != 3 || output.Axes[0].Axis != "demeanor" || output.Axes[0].Resolver != "dominance_shift" {
		t.Fatalf("unexpected axes: %+v", output.Axes)
	}

	_, _, err = server.handleGetGrammar(context.Background(), nil, GetGrammarInput{World: "atlantis"})
	if !errors.Is(err, world.ErrUnknownWorld) {
		t.Fatalf("expected ErrUnknownWorld, got %v", err)
	}
}

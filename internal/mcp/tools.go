package mcp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/engine"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

type ResolveChatInput struct {
	World    string `json:"world" jsonschema:"world id"`
	Speaker  string `json:"speaker" jsonschema:"speaking character name"`
	Listener string `json:"listener" jsonschema:"listening character name"`
	Channel  string `json:"channel" jsonschema:"say, yell, or whisper"`
	Message  string `json:"message,omitempty" jsonschema:"message text, recorded as event metadata"`
}

type GetCharacterAxisEventsInput struct {
	World     string `json:"world" jsonschema:"world id"`
	Character string `json:"character" jsonschema:"character name"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum events to return, default 50"`
}

type GetGrammarInput struct {
	World string `json:"world" jsonschema:"world id"`
}

type EntityResolutionOutput struct {
	CharacterID int64              `json:"character_id"`
	Name        string             `json:"name"`
	Deltas      []engine.AxisDelta `json:"deltas"`
}

// ResolveChatOutput mirrors engine.AxisResolutionResult with the snapshot
// keyed by decimal character id.
type ResolveChatOutput struct {
	EventID         int64                         `json:"event_id"`
	FingerprintHash string                        `json:"fingerprint_hash"`
	World           string                        `json:"world"`
	Channel         string                        `json:"channel"`
	GrammarVersion  string                        `json:"grammar_version"`
	Speaker         EntityResolutionOutput        `json:"speaker"`
	Listener        EntityResolutionOutput        `json:"listener"`
	Snapshot        map[string]map[string]float64 `json:"snapshot"`
}

type EventOutput struct {
	ID           int64               `json:"id"`
	WorldID      string              `json:"world_id"`
	EventType    string              `json:"event_type"`
	Fingerprint  string              `json:"fingerprint,omitempty"`
	OccurredAt   string              `json:"occurred_at"`
	Participants []store.Participant `json:"participants"`
	Deltas       []store.AxisDelta   `json:"deltas"`
	Metadata     map[string]string   `json:"metadata"`
}

type GetCharacterAxisEventsOutput struct {
	CharacterID int64         `json:"character_id"`
	Events      []EventOutput `json:"events"`
}

type AxisRuleOutput struct {
	Axis          string  `json:"axis"`
	Resolver      string  `json:"resolver"`
	BaseMagnitude float64 `json:"base_magnitude"`
}

type GrammarOutput struct {
	World              string             `json:"world"`
	Version            string             `json:"version"`
	ChannelMultipliers map[string]float64 `json:"channel_multipliers"`
	MinGapThreshold    float64            `json:"min_gap_threshold"`
	Axes               []AxisRuleOutput   `json:"axes"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "resolve_chat",
		Description: "Resolve a chat message between two characters and persist the axis changes",
	}, s.handleResolveChat)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_character_axis_events",
		Description: "List the axis events a character took part in, newest first",
	}, s.handleGetCharacterAxisEvents)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_grammar",
		Description: "Return a world's resolution grammar",
	}, s.handleGetGrammar)
}

func (s *Server) handleResolveChat(ctx context.Context, req *sdk.CallToolRequest, input ResolveChatInput) (*sdk.CallToolResult, ResolveChatOutput, error) {
	if input.World == "" || input.Speaker == "" || input.Listener == "" || input.Channel == "" {
		return nil, ResolveChatOutput{}, fmt.Errorf("world, speaker, listener and channel are required")
	}
	speaker, err := s.character(ctx, input.World, input.Speaker)
	if err != nil {
		return nil, ResolveChatOutput{}, err
	}
	listener, err := s.character(ctx, input.World, input.Listener)
	if err != nil {
		return nil, ResolveChatOutput{}, err
	}

	result, err := s.resolver.ResolveChatInteraction(ctx, input.World, speaker.ID, listener.ID, input.Channel, input.Message)
	if err != nil {
		return nil, ResolveChatOutput{}, err
	}
	return nil, resolveChatOutput(result), nil
}

func (s *Server) handleGetCharacterAxisEvents(ctx context.Context, req *sdk.CallToolRequest, input GetCharacterAxisEventsInput) (*sdk.CallToolResult, GetCharacterAxisEventsOutput, error) {
	if input.World == "" || input.Character == "" {
		return nil, GetCharacterAxisEventsOutput{}, fmt.Errorf("world and character are required")
	}
	character, err := s.character(ctx, input.World, input.Character)
	if err != nil {
		return nil, GetCharacterAxisEventsOutput{}, err
	}

	events, err := s.db.GetCharacterAxisEvents(ctx, character.ID, input.Limit)
	if err != nil {
		return nil, GetCharacterAxisEventsOutput{}, err
	}

	output := make([]EventOutput, 0, len(events))
	for _, event := range events {
		output = append(output, eventOutputFromStore(event))
	}
	return nil, GetCharacterAxisEventsOutput{CharacterID: character.ID, Events: output}, nil
}

func (s *Server) handleGetGrammar(ctx context.Context, req *sdk.CallToolRequest, input GetGrammarInput) (*sdk.CallToolResult, GrammarOutput, error) {
	if input.World == "" {
		return nil, GrammarOutput{}, fmt.Errorf("world is required")
	}
	g, err := s.grammars.Grammar(input.World)
	if err != nil {
		return nil, GrammarOutput{}, err
	}
	return nil, grammarOutput(input.World, g), nil
}

func (s *Server) character(ctx context.Context, worldID, name string) (*store.Character, error) {
	character, err := s.db.GetCharacterByName(ctx, worldID, name)
	if err != nil {
		return nil, err
	}
	if character == nil {
		return nil, fmt.Errorf("%w: %s in world %s", engine.ErrCharacterNotFound, name, worldID)
	}
	return character, nil
}

func resolveChatOutput(result *engine.AxisResolutionResult) ResolveChatOutput {
	snapshot := make(map[string]map[string]float64, len(result.Snapshot))
	for id, scores := range result.Snapshot {
		axes := make(map[string]float64, len(scores))
		for axis, score := range scores {
			axes[axis] = score
		}
		snapshot[strconv.FormatInt(id, 10)] = axes
	}
	return ResolveChatOutput{
		EventID:         result.EventID,
		FingerprintHash: result.FingerprintHash,
		World:           result.WorldID,
		Channel:         result.Channel,
		GrammarVersion:  result.GrammarVersion,
		Speaker:         entityResolutionOutput(result.Speaker),
		Listener:        entityResolutionOutput(result.Listener),
		Snapshot:        snapshot,
	}
}

func entityResolutionOutput(entity engine.EntityResolution) EntityResolutionOutput {
	return EntityResolutionOutput{
		CharacterID: entity.CharacterID,
		Name:        entity.Name,
		Deltas:      append([]engine.AxisDelta{}, entity.Deltas...),
	}
}

func grammarOutput(worldID string, g *grammar.ResolutionGrammar) GrammarOutput {
	chat := g.Chat()
	out := GrammarOutput{
		World:              worldID,
		Version:            g.Version(),
		ChannelMultipliers: make(map[string]float64, len(grammar.Channels())),
		MinGapThreshold:    chat.MinGapThreshold(),
	}
	for _, channel := range grammar.Channels() {
		multiplier, _ := chat.Multiplier(string(channel))
		out.ChannelMultipliers[string(channel)] = multiplier
	}
	for _, rule := range chat.Rules() {
		out.Axes = append(out.Axes, AxisRuleOutput{
			Axis:          rule.Axis,
			Resolver:      rule.Resolver.String(),
			BaseMagnitude: rule.BaseMagnitude,
		})
	}
	return out
}

func eventOutputFromStore(event store.Event) EventOutput {
	metadata := map[string]string{}
	for key, value := range event.Metadata {
		metadata[key] = value
	}
	return EventOutput{
		ID:           event.ID,
		WorldID:      event.WorldID,
		EventType:    event.EventType,
		Fingerprint:  event.Fingerprint,
		OccurredAt:   event.OccurredAt.UTC().Format(time.RFC3339Nano),
		Participants: append([]store.Participant{}, event.Participants...),
		Deltas:       append([]store.AxisDelta{}, event.Deltas...),
		Metadata:     metadata,
	}
}

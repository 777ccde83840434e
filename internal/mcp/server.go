package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/engine"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/store"
)

// ChatResolver is the engine entry point the tools call.
type ChatResolver interface {
	ResolveChatInteraction(ctx context.Context, worldID string, speakerID, listenerID int64, channel, message string) (*engine.AxisResolutionResult, error)
}

// CharacterStore is the read side of the store the tools need.
type CharacterStore interface {
	GetCharacterByName(ctx context.Context, worldID, name string) (*store.Character, error)
	GetCharacterAxisEvents(ctx context.Context, characterID int64, limit int) ([]store.Event, error)
}

type GrammarSource interface {
	Grammar(worldID string) (*grammar.ResolutionGrammar, error)
}

type Server struct {
	resolver ChatResolver
	db       CharacterStore
	grammars GrammarSource
	mcp      *sdk.Server
}

func NewServer(resolver ChatResolver, db CharacterStore, grammars GrammarSource, version string) *Server {
	s := &Server{
		resolver: resolver,
		db:       db,
		grammars: grammars,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "pipeworks",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}

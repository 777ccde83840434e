// Package world maps world ids to their resolution grammars. Grammars load
// on first use, must cover every axis the world declares, and are cached for
// the life of the process.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/config"
	"github.com/pipe-works/pipeworks-mud-server-sub001/internal/grammar"
)

// ErrUnknownWorld is returned for a world id that is not configured.
var ErrUnknownWorld = errors.New("unknown world")

type Registry struct {
	logger *slog.Logger
	worlds map[string]config.World

	mu       sync.RWMutex
	grammars map[string]*grammar.ResolutionGrammar
}

func NewRegistry(worlds []config.World, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	byID := make(map[string]config.World, len(worlds))
	for _, w := range worlds {
		byID[w.ID] = w
	}
	return &Registry{
		logger:   logger,
		worlds:   byID,
		grammars: make(map[string]*grammar.ResolutionGrammar),
	}
}

// Grammar returns the world's resolution grammar, loading and checking it on
// first call. Failed loads are not cached.
func (r *Registry) Grammar(worldID string) (*grammar.ResolutionGrammar, error) {
	r.mu.RLock()
	g, ok := r.grammars[worldID]
	r.mu.RUnlock()
	if ok {
		return g, nil
	}

	w, ok := r.worlds[worldID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorld, worldID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.grammars[worldID]; ok {
		return g, nil
	}

	g, err := grammar.LoadResolutionGrammar(w.Root)
	if err != nil {
		return nil, fmt.Errorf("loading grammar for world %s: %w", worldID, err)
	}
	if err := grammar.CheckCoverage(g, w.Axes); err != nil {
		return nil, fmt.Errorf("loading grammar for world %s: %w", worldID, err)
	}
	if extra := grammar.Undeclared(g, w.Axes); len(extra) > 0 {
		r.logger.Warn("grammar names axes the world does not declare", "world", worldID, "axes", extra)
	}

	r.grammars[worldID] = g
	r.logger.Info("loaded resolution grammar", "world", worldID, "version", g.Version(), "axes", len(g.Chat().Axes()))
	return g, nil
}

// Preload loads every configured world's grammar and returns the first
// failure.
func (r *Registry) Preload() error {
	for _, id := range r.WorldIDs() {
		if _, err := r.Grammar(id); err != nil {
			return err
		}
	}
	return nil
}

// WorldIDs returns the configured world ids in sorted order.
func (r *Registry) WorldIDs() []string {
	ids := make([]string, 0, len(r.worlds))
	for id := range r.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Root(worldID string) (string, bool) {
	w, ok := r.worlds[worldID]
	return w.Root, ok
}

// Axes returns the axes the world declares.
func (r *Registry) Axes(worldID string) ([]string, bool) {
	w, ok := r.worlds[worldID]
	if !ok {
		return nil, false
	}
	return append([]string(nil), w.Axes...), true
}

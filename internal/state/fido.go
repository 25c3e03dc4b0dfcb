package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/fido"
	"github.com/codeGROOVE-dev/fido/pkg/store/cloudrun"
)

// guildDatabase is the Datastore database holding guild state.
const guildDatabase = "warden-guilds"

// FidoStore implements Store using fido with CloudRun backend.
//
// Requires the warden-guilds Datastore database to exist before use.
// Guild state never expires: it is rewritten on every mutation.
type FidoStore struct {
	guilds *fido.TieredCache[string, GuildState]
}

// FidoStoreOption configures a FidoStore.
type FidoStoreOption func(*fidoStoreOptions)

type fidoStoreOptions struct {
	guildStore fido.Store[string, GuildState]
}

// WithGuildStore sets a custom backing store for guild state.
func WithGuildStore(s fido.Store[string, GuildState]) FidoStoreOption {
	return func(o *fidoStoreOptions) { o.guildStore = s }
}

// NewFidoStore creates a new fido-backed store.
// Uses CloudRun backend which auto-detects environment.
func NewFidoStore(ctx context.Context, opts ...FidoStoreOption) (*FidoStore, error) {
	var o fidoStoreOptions
	for _, opt := range opts {
		opt(&o)
	}

	guildStore := o.guildStore
	if guildStore == nil {
		var err error
		guildStore, err = cloudrun.New[string, GuildState](ctx, guildDatabase)
		if err != nil {
			return nil, fmt.Errorf("create guild store: %w", err)
		}
	}

	guilds, err := fido.NewTiered(guildStore)
	if err != nil {
		return nil, fmt.Errorf("create guild cache: %w", err)
	}

	slog.Info("initialized fido store", "database", guildDatabase)
	return &FidoStore{guilds: guilds}, nil
}

// Load retrieves guild state.
func (s *FidoStore) Load(ctx context.Context, guildID string) (GuildState, bool, error) {
	gs, found, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return GuildState{}, false, fmt.Errorf("load guild %s: %w", guildID, err)
	}
	if !found {
		return GuildState{}, false, nil
	}
	return gs.Clone(), true, nil
}

// Save stores guild state.
func (s *FidoStore) Save(ctx context.Context, guildID string, gs GuildState) error {
	if err := s.guilds.Set(ctx, guildID, gs.Clone()); err != nil {
		return fmt.Errorf("save guild %s: %w", guildID, err)
	}
	return nil
}

// Close releases resources.
func (s *FidoStore) Close() error {
	if err := s.guilds.Close(); err != nil {
		return fmt.Errorf("close guilds: %w", err)
	}
	return nil
}

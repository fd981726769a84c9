// Package gateway defines the remote store contract shared by the HTTP client and
// the local bbolt backend.
package gateway

import (
	"context"
	"fmt"

	"smartnotes/internal/client"
	"smartnotes/internal/config"
	"smartnotes/internal/logging"
	"smartnotes/internal/store"
	"smartnotes/internal/types"
)

type AuthGateway interface {
	Register(ctx context.Context, reg types.Registration) (*types.User, error)
	Login(ctx context.Context, creds types.Credentials) (*types.LoginResult, error)
	SetToken(token string)
}

type ProfileGateway interface {
	Profile(ctx context.Context) (*types.User, error)
	UpdateProfile(ctx context.Context, update types.ProfileUpdate) (*types.User, error)
}

type FolderGateway interface {
	ListFolders(ctx context.Context) ([]*types.Folder, error)
	CreateFolder(ctx context.Context, name string) (*types.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
}

type NoteGateway interface {
	ListNotes(ctx context.Context, folderID string) ([]*types.Note, error)
	CreateNote(ctx context.Context, folderID string, draft types.NoteDraft) (*types.Note, error)
	UpdateNote(ctx context.Context, id string, patch types.NotePatch) (*types.Note, error)
	DeleteNote(ctx context.Context, id string) error
}

type AIGateway interface {
	ProcessText(ctx context.Context, text string, op types.AIOperation) (*types.TextResult, error)
	ProcessImage(ctx context.Context, upload types.ImageUpload, op types.AIOperation) (*types.ImageResult, error)
}

// Gateway is everything the client needs from the remote store.
type Gateway interface {
	AuthGateway
	ProfileGateway
	FolderGateway
	NoteGateway
	AIGateway
	Close() error
}

var (
	_ Gateway = (*client.Client)(nil)
	_ Gateway = (*store.BoltGateway)(nil)
)

// Open builds the backend selected by cfg.
func Open(cfg config.Config, logger logging.Logger) (Gateway, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	switch cfg.BackendMode() {
	case types.BackendLocal:
		path, err := cfg.LocalDBPath()
		if err != nil {
			return nil, err
		}
		opts := []store.BoltOption{store.WithLogger(logger)}
		if cfg.HasAPIBaseURL() {
			opts = append(opts, store.WithAIBackend(client.New(cfg, logger.With(logging.F("component", "ai_client")))))
		}
		gw, err := store.OpenBoltGateway(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("open local store %s: %w", path, err)
		}
		logger.Debug("gateway_opened", logging.F("backend", "local"), logging.F("path", path))
		return gw, nil
	default:
		logger.Debug("gateway_opened", logging.F("backend", "remote"), logging.F("base_url", cfg.APIBaseURL()))
		return client.New(cfg, logger.With(logging.F("component", "client"))), nil
	}
}

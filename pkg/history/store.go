// Package history persists conversation threads, their messages, and run
// events. Two backends implement the same Store interface: a local SQLite
// database for development and Cosmos DB NoSQL for deployed environments.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/config"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
)

// Store errors shared by all backends.
var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrInvalidRole    = errors.New("invalid message role")
)

// Store is the conversation history backend used by the runtime, the CLI
// commands, and the history API.
type Store interface {
	CreateThread(ctx context.Context, req *CreateThreadRequest) (*Thread, error)
	GetThread(ctx context.Context, threadID string) (*Thread, error)
	FindThreadByTitle(ctx context.Context, title string) (*Thread, error)
	ListThreads(ctx context.Context, limit, offset int) ([]*Thread, error)
	TouchThread(ctx context.Context, threadID string) error
	DeleteThread(ctx context.Context, threadID string) error

	AppendMessage(ctx context.Context, req *AppendMessageRequest) (*Message, error)
	ListMessages(ctx context.Context, threadID string) ([]*Message, error)

	StoreRunEvent(ctx context.Context, event *RunEvent) error
	ListRunEvents(ctx context.Context, threadID string, limit int) ([]*RunEvent, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver: "sqlite" (the default) or
// "cosmos".
func Open(cfg config.HistoryConfig, log utils.ExtendedLogger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.DBPath
		if path == "" {
			path = config.DefaultHistoryDBPath
		}
		return NewSQLiteStore(path, log)
	case "cosmos":
		return NewCosmosStore(cfg.Cosmos, log)
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

// ValidRole reports whether the role is one history accepts.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

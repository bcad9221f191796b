// Package registry persists published agent definitions. Publishing is what
// turns a local draft into the copy a deployment serves: the persistent-agent
// sample registers its draft here on first run, and published mode resolves
// agents from here instead of the in-code catalog.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/agents"
)

// ErrNotPublished is returned when no agent with the requested name has been
// published.
var ErrNotPublished = errors.New("agent not published")

// PublishedAgent is one registry row: an agent definition snapshot plus the
// publish bookkeeping. Revision starts at 1 and increments on republish.
type PublishedAgent struct {
	Name           string                  `json:"name"`
	DisplayName    string                  `json:"display_name,omitempty"`
	Description    string                  `json:"description,omitempty"`
	Model          string                  `json:"model,omitempty"`
	Instructions   string                  `json:"instructions"`
	Temperature    float64                 `json:"temperature,omitempty"`
	Tools          []agents.ToolAttachment `json:"tools,omitempty"`
	Metadata       map[string]string       `json:"metadata,omitempty"`
	Revision       int                     `json:"revision"`
	PublishedAt    time.Time               `json:"published_at"`
	FirstPublished time.Time               `json:"first_published"`
}

// Definition reconstructs the runnable definition. The variant is always
// published; that is what being in the registry means.
func (p *PublishedAgent) Definition() agents.AgentDefinition {
	def := agents.AgentDefinition{
		Name:         p.Name,
		DisplayName:  p.DisplayName,
		Description:  p.Description,
		Model:        p.Model,
		Instructions: p.Instructions,
		Temperature:  p.Temperature,
		Variant:      agents.VariantPublished,
	}
	if p.Tools != nil {
		def.Tools = make([]agents.ToolAttachment, len(p.Tools))
		copy(def.Tools, p.Tools)
	}
	if p.Metadata != nil {
		def.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			def.Metadata[k] = v
		}
	}
	return def
}

// Registry stores published agents in SQLite. It shares the history database
// file but owns its table, so one local DB carries the whole sample state.
type Registry struct {
	db  *sql.DB
	log utils.ExtendedLogger
}

const registrySchema = `
	CREATE TABLE IF NOT EXISTS published_agents (
		name TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		instructions TEXT NOT NULL,
		temperature REAL NOT NULL DEFAULT 0,
		tools TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		revision INTEGER NOT NULL DEFAULT 1,
		published_at DATETIME NOT NULL,
		first_published DATETIME NOT NULL
	)
`

// Open opens (or creates) the registry table in the database at path.
func Open(path string, log utils.ExtendedLogger) (*Registry, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create registry directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	// Same constraint as the history store: pragmas are connection scoped and
	// ":memory:" is per connection, so the pool stays at one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping registry database: %w", err)
	}
	if _, err := db.Exec(registrySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create published_agents table: %w", err)
	}

	log.Debugf("registry: ready at %s", path)
	return &Registry{db: db, log: log}, nil
}

const publishedColumns = `
	name, display_name, description, model, instructions, temperature,
	tools, metadata, revision, published_at, first_published
`

// Publish upserts the definition by name. A new agent gets revision 1;
// republishing the same name replaces the snapshot and bumps the revision.
func (r *Registry) Publish(ctx context.Context, def agents.AgentDefinition) (*PublishedAgent, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	toolsJSON, err := json.Marshal(def.Tools)
	if err != nil {
		return nil, fmt.Errorf("marshal tools: %w", err)
	}
	metadataJSON, err := json.Marshal(def.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if def.Tools == nil {
		toolsJSON = []byte("[]")
	}
	if def.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO published_agents (`+publishedColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			display_name = excluded.display_name,
			description = excluded.description,
			model = excluded.model,
			instructions = excluded.instructions,
			temperature = excluded.temperature,
			tools = excluded.tools,
			metadata = excluded.metadata,
			revision = published_agents.revision + 1,
			published_at = excluded.published_at
		RETURNING `+publishedColumns,
		def.Name, def.DisplayName, def.Description, def.Model, def.Instructions,
		def.Temperature, string(toolsJSON), string(metadataJSON), now, now)

	published, err := scanPublished(row)
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", def.Name, err)
	}

	r.log.Infof("registry: published %s (revision %d)", published.Name, published.Revision)
	return published, nil
}

// Get returns the published agent with the given name.
func (r *Registry) Get(ctx context.Context, name string) (*PublishedAgent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+publishedColumns+`
		FROM published_agents WHERE name = ?
	`, name)

	published, err := scanPublished(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotPublished, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return published, nil
}

// List returns every published agent, newest publish first.
func (r *Registry) List(ctx context.Context) ([]*PublishedAgent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+publishedColumns+`
		FROM published_agents ORDER BY published_at DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list published agents: %w", err)
	}
	defer rows.Close()

	published := []*PublishedAgent{}
	for rows.Next() {
		p, err := scanPublished(rows)
		if err != nil {
			return nil, err
		}
		published = append(published, p)
	}
	return published, rows.Err()
}

// Unpublish removes the agent from the registry.
func (r *Registry) Unpublish(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM published_agents WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("unpublish %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotPublished, name)
	}

	r.log.Infof("registry: unpublished %s", name)
	return nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPublished(row scanner) (*PublishedAgent, error) {
	var p PublishedAgent
	var toolsJSON, metadataJSON string
	err := row.Scan(&p.Name, &p.DisplayName, &p.Description, &p.Model,
		&p.Instructions, &p.Temperature, &toolsJSON, &metadataJSON,
		&p.Revision, &p.PublishedAt, &p.FirstPublished)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(toolsJSON), &p.Tools); err != nil {
		return nil, fmt.Errorf("decode tools for %s: %w", p.Name, err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &p.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", p.Name, err)
	}
	return &p, nil
}

// File: internal/scripts/scripts.go
package scripts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/config"
	"github.com/xkilldash9x/scriptfill/internal/textnorm"
)

var (
	// ErrNotFound is returned when no script has the requested ID.
	ErrNotFound = errors.New("scripts: script not found")
	// ErrInvalid is returned for scripts without a title or content.
	ErrInvalid = errors.New("scripts: title and content are required")
)

// Repository stores scripts. Implementations are safe for concurrent use.
type Repository interface {
	List(ctx context.Context) ([]schemas.Script, error)
	Get(ctx context.Context, id string) (schemas.Script, error)
	// Put creates or replaces a script and returns it as stored. A script
	// without an ID is assigned one.
	Put(ctx context.Context, s schemas.Script) (schemas.Script, error)
	Delete(ctx context.Context, id string) error
	// Search returns the scripts whose title, note or content contain query,
	// ignoring case and diacritics. An empty query returns everything.
	Search(ctx context.Context, query string) ([]schemas.Script, error)
	// Import stores a batch of scripts and reports how many were written.
	Import(ctx context.Context, batch []schemas.Script) (int, error)
}

// Prepare validates s and fills in its ID and timestamps.
func Prepare(s schemas.Script, now time.Time) (schemas.Script, error) {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" || strings.TrimSpace(s.Content) == "" {
		return s, ErrInvalid
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now = now.UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	return s, nil
}

// Matches reports whether s matches a search query.
func Matches(s schemas.Script, query string) bool {
	q := textnorm.Normalize(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, field := range []string{s.Title, s.Note, s.Content} {
		if strings.Contains(textnorm.Normalize(field), q) {
			return true
		}
	}
	return false
}

// Filter returns the scripts in list matching query, in order.
func Filter(list []schemas.Script, query string) []schemas.Script {
	out := make([]schemas.Script, 0, len(list))
	for _, s := range list {
		if Matches(s, query) {
			out = append(out, s)
		}
	}
	return out
}

// Sort orders scripts by group, then title, then ID.
func Sort(list []schemas.Script) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
}

// Open returns the repository selected by cfg and a function releasing it.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Repository, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.Type) {
	case config.StoreFile, "":
		return NewFileStore(cfg.File.Path, logger), func() {}, nil
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		store, err := NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	case config.StoreRemote:
		store, err := NewRemoteStore(cfg.Remote, nil, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

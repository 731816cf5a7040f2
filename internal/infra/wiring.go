// Package infra builds the concrete backends a process is configured for.
package infra

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dvloznov/optifi/internal/config"
	infraBQ "github.com/dvloznov/optifi/internal/infra/bigquery"
	"github.com/dvloznov/optifi/internal/infra/memstore"
	"github.com/dvloznov/optifi/internal/infra/sqlstore"
	"github.com/dvloznov/optifi/internal/notionsync"
	"github.com/dvloznov/optifi/internal/oracle"
	"github.com/dvloznov/optifi/internal/store"
)

// Backend is a repository that also records sync runs.
type Backend interface {
	store.Repository
	store.RunRecorder
}

var (
	_ Backend = (*infraBQ.Repository)(nil)
	_ Backend = (*sqlstore.Store)(nil)
	_ Backend = (*memstore.Store)(nil)
)

// OpenBackend connects to the store selected by cfg.StoreBackend.
func OpenBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewRepository(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendPostgres, config.BackendMySQL:
		dialect, err := sqlstore.DialectFor(cfg.StoreBackend)
		if err != nil {
			return nil, err
		}
		st, err := sqlstore.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("OpenBackend: unknown backend %q", cfg.StoreBackend)
	}
}

// OpenMatcher returns the match oracle: the remote proxy when ORACLE_URL is
// set, otherwise Gemini directly. It fails with oracle.ErrMissingCredential
// when neither is configured.
func OpenMatcher(ctx context.Context, cfg config.Config) (oracle.Matcher, error) {
	if cfg.OracleURL != "" {
		return oracle.NewHTTPClient(cfg.OracleURL, http.DefaultClient), nil
	}
	if cfg.GeminiAPIKey == "" {
		return nil, oracle.ErrMissingCredential
	}
	m, err := oracle.NewGeminiMatcher(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// OpenNotionPublisher returns a publisher for the configured database.
func OpenNotionPublisher(cfg config.Config, opts notionsync.Options) (*notionsync.Publisher, error) {
	if err := cfg.RequireNotion(); err != nil {
		return nil, err
	}
	return notionsync.NewPublisher(notionsync.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID, opts), nil
}

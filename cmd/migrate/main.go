package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/optifi/internal/config"
	"github.com/dvloznov/optifi/internal/infra/sqlstore"
	"github.com/dvloznov/optifi/internal/logger"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

func main() {
	cfg := config.FromEnv()

	var (
		backend       = flag.String("backend", cfg.StoreBackend, "Store backend: bigquery, postgres or mysql")
		projectID     = flag.String("project", cfg.BQProject, "GCP project ID")
		datasetID     = flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	)
	flag.Parse()

	log := logger.NewFromOptions(os.Stdout, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx := logger.WithContext(context.Background(), log)

	switch *backend {
	case config.BackendPostgres, config.BackendMySQL:
		if err := migrateSQL(ctx, *backend, cfg.DatabaseURL); err != nil {
			log.Fatal().Err(err).Str("backend", *backend).Msg("Migration failed")
		}
		log.Info().Str("backend", *backend).Msg("Schema is up to date")
	case config.BackendBigQuery:
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag or BQ_PROJECT is required")
		}
		m := &bqMigrator{
			projectID: *projectID,
			datasetID: *datasetID,
			appliedBy: *appliedBy,
			log:       log,
		}
		if err := m.run(ctx, *migrationsDir); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	default:
		log.Fatal().Str("backend", *backend).Msg("Nothing to migrate for this backend")
	}
}

func migrateSQL(ctx context.Context, backend, dsn string) error {
	if dsn == "" {
		return &config.MissingFieldError{Field: "database URL", EnvVar: "DATABASE_URL"}
	}
	dialect, err := sqlstore.DialectFor(backend)
	if err != nil {
		return err
	}
	st, err := sqlstore.Open(ctx, dialect, dsn)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Migrate(ctx)
}

type bqMigrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
	log       zerolog.Logger
}

func (m *bqMigrator) run(ctx context.Context, dir string) error {
	client, err := bigquery.NewClient(ctx, m.projectID)
	if err != nil {
		return fmt.Errorf("creating BigQuery client: %w", err)
	}
	defer client.Close()
	m.client = client

	m.log.Info().Str("project", m.projectID).Str("dataset", m.datasetID).Msg("Connected to BigQuery")

	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensuring schema_migrations table: %w", err)
	}

	migrations, err := readMigrations(m.log, dir, m.projectID, m.datasetID)
	if err != nil {
		return err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	todo, drifted := pending(migrations, applied)
	for _, d := range drifted {
		m.log.Warn().Str("migration", d.Filename).Msg("Applied migration has changed on disk")
	}

	m.log.Info().
		Int("found", len(migrations)).
		Int("applied", len(applied)).
		Int("pending", len(todo)).
		Msg("Loaded migrations")

	for _, migration := range todo {
		log := m.log.With().Str("migration", migration.Filename).Logger()
		log.Info().Msg("Applying migration")

		if err := m.exec(ctx, m.client.Query(migration.SQL)); err != nil {
			return fmt.Errorf("executing %s: %w", migration.Filename, err)
		}
		if err := m.record(ctx, migration); err != nil {
			return fmt.Errorf("recording %s: %w", migration.Filename, err)
		}
	}

	if len(todo) == 0 {
		m.log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		m.log.Info().Int("count", len(todo)).Msg("Applied migrations")
	}
	return nil
}

func (m *bqMigrator) table() string {
	return fmt.Sprintf("`%s.%s.schema_migrations`", m.projectID, m.datasetID)
}

func (m *bqMigrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	return m.exec(ctx, m.client.Query(`
		CREATE TABLE IF NOT EXISTS `+m.table()+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`))
}

func (m *bqMigrator) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	it, err := m.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + m.table() + `
		ORDER BY version ASC
	`).Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64                  `bigquery:"version"`
			Name      string                 `bigquery:"name"`
			AppliedAt bigquery.NullTimestamp `bigquery:"applied_at"`
			Checksum  bigquery.NullString    `bigquery:"checksum"`
			AppliedBy bigquery.NullString    `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt.Timestamp,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}

func (m *bqMigrator) record(ctx context.Context, migration Migration) error {
	q := m.client.Query(`
		INSERT INTO ` + m.table() + `
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "version", Value: migration.Version},
		{Name: "name", Value: migration.Name},
		{Name: "checksum", Value: migration.Checksum},
		{Name: "applied_by", Value: m.appliedBy},
	}
	return m.exec(ctx, q)
}

func (m *bqMigrator) exec(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

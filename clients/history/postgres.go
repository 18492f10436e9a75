package history

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/estafette/estafette-ci-notifier/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver for goose
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPostgresClient migrates the build_history table and returns a Client backed by a pgx connection pool
func NewPostgresClient(ctx context.Context, dsn string) (Client, error) {

	if err := runMigrations(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Info().Msg("Connected to postgres build history")

	return &postgresClient{
		pool: pool,
	}, nil
}

func runMigrations(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

type postgresClient struct {
	pool *pgxpool.Pool
}

const selectBuildQuery = `
SELECT id, previous_id, number, project_name, display_name, url, outcome, duration_ms, finished_at, environment
FROM build_history
WHERE id = $1`

const upsertBuildQuery = `
INSERT INTO build_history (id, previous_id, number, project_name, display_name, url, outcome, duration_ms, finished_at, environment)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    previous_id = EXCLUDED.previous_id,
    number = EXCLUDED.number,
    project_name = EXCLUDED.project_name,
    display_name = EXCLUDED.display_name,
    url = EXCLUDED.url,
    outcome = EXCLUDED.outcome,
    duration_ms = EXCLUDED.duration_ms,
    finished_at = EXCLUDED.finished_at,
    environment = EXCLUDED.environment`

func (c *postgresClient) GetBuild(ctx context.Context, id string) (build api.BuildRecord, err error) {

	var outcome string
	var durationMs int64
	var environment map[string]string

	err = c.pool.QueryRow(ctx, selectBuildQuery, id).Scan(
		&build.ID,
		&build.PreviousID,
		&build.Number,
		&build.ProjectName,
		&build.DisplayName,
		&build.URL,
		&outcome,
		&durationMs,
		&build.Timestamp,
		&environment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return build, ErrBuildNotFound
		}
		return build, fmt.Errorf("get build %v: %w", id, err)
	}

	build.Outcome = api.BuildOutcome(outcome)
	build.Duration = time.Duration(durationMs) * time.Millisecond
	build.Environment = environment

	return build, nil
}

func (c *postgresClient) StoreBuild(ctx context.Context, build api.BuildRecord) error {
	if build.ID == "" {
		return errors.New("Cannot store build without id")
	}

	environment := build.Environment
	if environment == nil {
		environment = map[string]string{}
	}

	timestamp := build.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := c.pool.Exec(ctx, upsertBuildQuery,
		build.ID,
		build.PreviousID,
		build.Number,
		build.ProjectName,
		build.DisplayName,
		build.URL,
		string(build.Outcome),
		build.Duration.Milliseconds(),
		timestamp,
		environment,
	)
	if err != nil {
		return fmt.Errorf("store build %v: %w", build.ID, err)
	}

	return nil
}

func (c *postgresClient) Close() {
	c.pool.Close()
}

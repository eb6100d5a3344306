package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var migrationName = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Migration is one embedded schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
	Checksum    string
}

// AppliedMigration records a migration already present in schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Migrator applies the embedded migrations in version order.
type Migrator struct {
	db     *sql.DB
	source fs.FS
	logger *slog.Logger
}

// NewMigrator returns a Migrator for the embedded migrations.
func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, source: migrationFiles, logger: logger}
}

// Migrate creates the version table and applies every pending migration.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.initializeVersionTable(ctx); err != nil {
		return err
	}

	migrations, err := m.scan()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		applied, err := m.isApplied(ctx, migration.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		started := time.Now()
		if err := m.execute(ctx, migration); err != nil {
			return err
		}
		elapsed := time.Since(started)
		if err := m.record(ctx, migration, elapsed); err != nil {
			return err
		}
		m.logger.Info("applied migration",
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
			slog.Duration("elapsed", elapsed),
		)
	}
	return nil
}

// Applied lists the migrations recorded in schema_migrations.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT version, applied_at, COALESCE(execution_time_ms, 0), COALESCE(checksum, '')
		FROM schema_migrations
		ORDER BY version ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list applied migrations")
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var (
			record    AppliedMigration
			appliedAt string
			elapsedMs int64
		)
		if err := rows.Scan(&record.Version, &appliedAt, &elapsedMs, &record.Checksum); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan applied migration")
		}
		record.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		record.ExecutionTime = time.Duration(elapsedMs) * time.Millisecond
		applied = append(applied, record)
	}
	return applied, errors.Wrap(rows.Err(), "sqlite: iterate applied migrations")
}

func (m *Migrator) initializeVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL,
			checksum TEXT,
			execution_time_ms INTEGER
		)`)
	return errors.Wrap(err, "sqlite: create schema_migrations table")
}

func (m *Migrator) scan() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: read migrations")
	}

	seen := make(map[string]string)
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		match := migrationName.FindStringSubmatch(entry.Name())
		if match == nil {
			return nil, errors.Errorf("sqlite: migration %s does not match {version}_{description}.sql", entry.Name())
		}
		if other, ok := seen[match[1]]; ok {
			return nil, errors.Errorf("sqlite: duplicate migration version %s in %s and %s", match[1], other, entry.Name())
		}
		seen[match[1]] = entry.Name()

		content, err := fs.ReadFile(m.source, path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "sqlite: read migration %s", entry.Name())
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, Migration{
			Version:     match[1],
			Description: strings.ReplaceAll(match[2], "_", " "),
			SQL:         string(content),
			Checksum:    hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func (m *Migrator) isApplied(ctx context.Context, version string) (bool, error) {
	var exists int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ? LIMIT 1`, version).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "sqlite: check migration %s", version)
	}
	return true, nil
}

func (m *Migrator) execute(ctx context.Context, migration Migration) error {
	statements := parseSQL(migration.SQL)
	if len(statements) == 0 {
		return errors.Errorf("sqlite: migration %s has no statements", migration.Version)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrapf(err, "sqlite: begin migration %s", migration.Version)
	}
	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "sqlite: migration %s statement %d", migration.Version, i+1)
		}
	}
	return errors.Wrapf(tx.Commit(), "sqlite: commit migration %s", migration.Version)
}

func (m *Migrator) record(ctx context.Context, migration Migration, elapsed time.Duration) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`,
		migration.Version, time.Now().UTC().Format(time.RFC3339), migration.Checksum, elapsed.Milliseconds(),
	)
	return errors.Wrapf(err, "sqlite: record migration %s", migration.Version)
}

// parseSQL splits a migration into statements, dropping comment-only lines.
func parseSQL(content string) []string {
	var statements []string
	for _, stmt := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			statements = append(statements, strings.Join(lines, "\n"))
		}
	}
	return statements
}

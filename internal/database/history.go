package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/webextract/relgate/internal/model"
)

// dbFileName is the SQLite file created under the data directory.
const dbFileName = "relgate.db"

// HistoryDB provides SQLite-based storage for pipeline runs and release
// decisions. It manages connection pooling and provides methods for
// recording and querying history.
//
// Design decision: We store the full run report as a JSON payload column
// next to a few indexed scalar columns. History queries filter and sort on
// the scalars; the payload is only decoded when a specific run is loaded,
// and schema migrations are rarely needed.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, dbFileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Pipeline runs store the full report as JSON next to indexed scalars
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		branch TEXT NOT NULL,
		commit_sha TEXT,
		started_at DATETIME NOT NULL,
		conclusion TEXT NOT NULL,
		superseded INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_branch ON runs(branch);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- Release decisions store the gate verdict for every evaluated ref
	CREATE TABLE IF NOT EXISTS releases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ref TEXT NOT NULL,
		trigger_kind TEXT NOT NULL,
		version TEXT,
		channel TEXT,
		allowed INTEGER NOT NULL,
		reason TEXT,
		run_conclusion TEXT,
		decided_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_releases_version ON releases(version);
	CREATE INDEX IF NOT EXISTS idx_releases_decided ON releases(decided_at);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun persists a completed run report and returns its database ID.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run report: %w", err)
	}

	query := `
	INSERT INTO runs (branch, commit_sha, started_at, conclusion, superseded, report_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := hdb.db.ExecContext(ctx, query,
		report.Branch,
		report.Commit,
		report.StartedAt.UTC().Format(time.RFC3339),
		report.Conclusion.String(),
		report.Superseded,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	report.ID = id

	return id, nil
}

// GetRunByID retrieves a run report by its database ID.
// Returns nil without error when no such run exists.
func (hdb *HistoryDB) GetRunByID(ctx context.Context, id int64) (*model.RunReport, error) {
	query := `
	SELECT id, report_json FROM runs
	WHERE id = ?
	`

	return hdb.scanRun(hdb.db.QueryRowContext(ctx, query, id))
}

// LatestRun retrieves the most recent run for a branch.
// Returns nil without error when the branch has no runs.
func (hdb *HistoryDB) LatestRun(ctx context.Context, branch string) (*model.RunReport, error) {
	query := `
	SELECT id, report_json FROM runs
	WHERE branch = ?
	ORDER BY started_at DESC, id DESC
	LIMIT 1
	`

	return hdb.scanRun(hdb.db.QueryRowContext(ctx, query, branch))
}

// scanRun decodes one run row into a report.
func (hdb *HistoryDB) scanRun(row *sql.Row) (*model.RunReport, error) {
	var (
		id         int64
		reportJSON string
	)
	err := row.Scan(&id, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse run report: %w", err)
	}
	report.ID = id

	return &report, nil
}

// RunHistory retrieves up to limit run reports for a branch, newest first.
func (hdb *HistoryDB) RunHistory(ctx context.Context, branch string, limit int) ([]*model.RunReport, error) {
	query := `
	SELECT id, report_json FROM runs
	WHERE branch = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, branch, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		var (
			id         int64
			reportJSON string
		)
		if err := rows.Scan(&id, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		var report model.RunReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed payloads
		}
		report.ID = id
		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// This is used for history listings without decoding the full report.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Branch is the branch the run validated.
	Branch string

	// Commit is the commit identifier, if recorded.
	Commit string

	// StartedAt is when the run began.
	StartedAt time.Time

	// Conclusion is the aggregate run result.
	Conclusion model.Conclusion

	// Superseded is true if a newer run cancelled this one.
	Superseded bool
}

// ListRuns retrieves run metadata for a branch, newest first.
// An empty branch lists runs across all branches.
func (hdb *HistoryDB) ListRuns(ctx context.Context, branch string, limit int) ([]RunMetadata, error) {
	query := `
	SELECT id, branch, commit_sha, started_at, conclusion, superseded
	FROM runs
	`
	args := make([]any, 0, 2)
	if branch != "" {
		query += " WHERE branch = ?"
		args = append(args, branch)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := hdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			commit     sql.NullString
			started    string
			conclusion string
		)
		if err := rows.Scan(&meta.ID, &meta.Branch, &commit, &started, &conclusion, &meta.Superseded); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}

		meta.Commit = commit.String
		meta.StartedAt = parseTimestamp(started)
		meta.Conclusion = model.ParseConclusion(conclusion)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// SaveDecision persists a release decision and returns its database ID.
func (hdb *HistoryDB) SaveDecision(ctx context.Context, decision *model.ReleaseDecision) (int64, error) {
	query := `
	INSERT INTO releases (ref, trigger_kind, version, channel, allowed, reason, run_conclusion, decided_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	version := ""
	if !decision.Version.IsZero() {
		version = decision.Version.String()
	}

	result, err := hdb.db.ExecContext(ctx, query,
		decision.Ref,
		decision.Trigger.String(),
		version,
		decision.Channel.String(),
		decision.Allowed,
		decision.Reason,
		decision.RunConclusion.String(),
		decision.DecidedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save release decision: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read decision id: %w", err)
	}
	decision.ID = id

	return id, nil
}

// ReleasedVersions returns the versions of up to limit allowed releases,
// newest first. The publish plan embeds them as the version history.
func (hdb *HistoryDB) ReleasedVersions(ctx context.Context, limit int) ([]string, error) {
	query := `
	SELECT version FROM releases
	WHERE allowed = 1 AND version != ''
	ORDER BY decided_at DESC, id DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query released versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// DecisionMetadata contains summary information about a stored release
// decision.
type DecisionMetadata struct {
	// ID is the unique identifier of the decision in the database.
	ID int64

	// Ref is the trigger input as supplied.
	Ref string

	// Version is the parsed version string, empty when validation failed.
	Version string

	// Channel is the release channel.
	Channel string

	// Allowed reports the gate verdict.
	Allowed bool

	// Reason explains a rejection.
	Reason string

	// DecidedAt is when the gate evaluated.
	DecidedAt time.Time
}

// ListDecisions retrieves release decision metadata, newest first.
func (hdb *HistoryDB) ListDecisions(ctx context.Context, limit int) ([]DecisionMetadata, error) {
	query := `
	SELECT id, ref, version, channel, allowed, reason, decided_at
	FROM releases
	ORDER BY decided_at DESC, id DESC
	LIMIT ?
	`

	rows, err := hdb.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list release decisions: %w", err)
	}
	defer rows.Close()

	var results []DecisionMetadata
	for rows.Next() {
		var (
			meta    DecisionMetadata
			reason  sql.NullString
			decided string
		)
		if err := rows.Scan(&meta.ID, &meta.Ref, &meta.Version, &meta.Channel, &meta.Allowed, &reason, &decided); err != nil {
			return nil, fmt.Errorf("failed to scan decision metadata: %w", err)
		}

		meta.Reason = reason.String
		meta.DecidedAt = parseTimestamp(decided)
		results = append(results, meta)
	}

	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339,              // Our own insert format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

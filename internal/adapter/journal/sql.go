package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/refractlabs/refract-core/internal/domain"
)

// Supported SQL drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	insertEntry   = `INSERT INTO journal_entries (id, at_unix_ns, kind, payload) VALUES (?, ?, ?, ?)`
	recentEntries = `SELECT id, at_unix_ns, kind, payload FROM journal_entries ORDER BY at_unix_ns DESC, id DESC LIMIT ?`
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS journal_entries (
		id         TEXT PRIMARY KEY,
		at_unix_ns BIGINT NOT NULL,
		kind       TEXT NOT NULL,
		payload    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_entries_at ON journal_entries (at_unix_ns)`,
}

// SQL persists journal entries through database/sql. SQLite is the
// single-node default; Postgres serves deployments that already run one.
type SQL struct {
	db     *sql.DB
	driver string
	logger *zap.Logger

	// modernc sqlite allows one writer; serializing inserts here keeps
	// SQLITE_BUSY out of the settlement path.
	mu sync.Mutex
}

// OpenSQL opens, pings, and migrates the journal store
func OpenSQL(driver, dsn string, logger *zap.Logger) (*SQL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create journal directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal store: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate journal store: %w", err)
		}
	}

	logger.Info("journal store ready", zap.String("driver", driver))
	return &SQL{db: db, driver: driver, logger: logger}, nil
}

// Record inserts one entry with its payload serialized as JSON
func (j *SQL) Record(ctx context.Context, entry domain.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal journal payload: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx, j.rebind(insertEntry),
		entry.ID.String(), entry.At.UnixNano(), string(entry.Kind), string(payload))
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. Payloads come back as
// json.RawMessage.
func (j *SQL) Recent(ctx context.Context, limit int) ([]domain.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.db.QueryContext(ctx, j.rebind(recentEntries), limit)
	if err != nil {
		return nil, fmt.Errorf("query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var (
			id      string
			atNanos int64
			kind    string
			payload []byte
		)
		if err := rows.Scan(&id, &atNanos, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("journal entry id %q: %w", id, err)
		}
		entries = append(entries, domain.Entry{
			ID:      parsed,
			At:      time.Unix(0, atNanos).UTC(),
			Kind:    domain.EntryKind(kind),
			Payload: json.RawMessage(payload),
		})
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle
func (j *SQL) Close() error {
	return j.db.Close()
}

// rebind rewrites ? placeholders to the $n form Postgres expects
func (j *SQL) rebind(query string) string {
	if j.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

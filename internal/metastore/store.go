// Package metastore persists registry snapshots of generation sessions in SQLite,
// for tools that inspect what a session declared and emitted.
package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"classgen/internal/diag"
	"classgen/internal/registry"

	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Session describes one stored snapshot.
type Session struct {
	ID               string
	ClassInitVersion uint64
	CreatedAt        time.Time
}

// Store is a SQLite-backed snapshot store.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open opens or creates the store at path and migrates its schema.
func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("metastore path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("metastore path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create metastore directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite metastore %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite metastore %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}
	return &Store{path: cleanPath, db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save stores snap under id, replacing an earlier snapshot with the same id.
func (s *Store) Save(ctx context.Context, id string, snap registry.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return diag.New(diag.CodeValidationError, "session id must not be empty")
	}

	return s.withRetry("save snapshot", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := saveTx(ctx, tx, id, snap); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func saveTx(ctx context.Context, tx *sql.Tx, id string, snap registry.Snapshot) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, class_init_version, created_at_utc) VALUES (?, ?, ?)`,
		id, int64(snap.ClassInitVersion), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return err
	}

	for _, c := range snap.Classes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes (session_id, name, super, extern, has_class_init, emitted_by) VALUES (?, ?, ?, ?, ?, ?)`,
			id, c.Name, c.Super, c.Extern, c.HasClassInit, c.EmittedBy,
		); err != nil {
			return fmt.Errorf("class %s: %w", c.Name, err)
		}
		for i, iface := range c.Interfaces {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO class_interfaces (session_id, class, position, interface) VALUES (?, ?, ?, ?)`,
				id, c.Name, i, iface,
			); err != nil {
				return fmt.Errorf("class %s: %w", c.Name, err)
			}
		}
	}

	for _, pkg := range snap.Packages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO packages (session_id, name) VALUES (?, ?)`, id, pkg); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(snap.TypeHints) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO type_hints (session_id, name, hint) VALUES (?, ?, ?)`, id, name, snap.TypeHints[name],
		); err != nil {
			return err
		}
	}
	for _, name := range snap.AccessedProperties {
		if _, err := tx.ExecContext(ctx, `INSERT INTO accessed_properties (session_id, name) VALUES (?, ?)`, id, name); err != nil {
			return err
		}
	}
	for _, path := range sortedKeys(snap.Units) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO units (session_id, path, unit_id) VALUES (?, ?, ?)`, id, path, snap.Units[path],
		); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the snapshot stored under id.
func (s *Store) Load(ctx context.Context, id string) (registry.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap registry.Snapshot
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT class_init_version FROM sessions WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, diag.AddContext(diag.New(diag.CodeNotFound, "session not found"), "session", id)
	}
	if err != nil {
		return snap, fmt.Errorf("load session %s: %w", id, err)
	}
	snap.ClassInitVersion = uint64(version)

	interfaces := make(map[string][]string)
	err = s.query(ctx, `SELECT class, interface FROM class_interfaces WHERE session_id = ? ORDER BY class, position`,
		[]any{id}, func(rows *sql.Rows) error {
			var class, iface string
			if err := rows.Scan(&class, &iface); err != nil {
				return err
			}
			interfaces[class] = append(interfaces[class], iface)
			return nil
		})
	if err != nil {
		return snap, err
	}

	err = s.query(ctx, `SELECT name, super, extern, has_class_init, emitted_by FROM classes WHERE session_id = ? ORDER BY name`,
		[]any{id}, func(rows *sql.Rows) error {
			var c registry.ClassInfo
			if err := rows.Scan(&c.Name, &c.Super, &c.Extern, &c.HasClassInit, &c.EmittedBy); err != nil {
				return err
			}
			c.Interfaces = interfaces[c.Name]
			snap.Classes = append(snap.Classes, c)
			return nil
		})
	if err != nil {
		return snap, err
	}

	err = s.query(ctx, `SELECT name FROM packages WHERE session_id = ? ORDER BY name`,
		[]any{id}, func(rows *sql.Rows) error {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			snap.Packages = append(snap.Packages, name)
			return nil
		})
	if err != nil {
		return snap, err
	}

	snap.TypeHints = make(map[string]string)
	err = s.query(ctx, `SELECT name, hint FROM type_hints WHERE session_id = ?`,
		[]any{id}, func(rows *sql.Rows) error {
			var name, hint string
			if err := rows.Scan(&name, &hint); err != nil {
				return err
			}
			snap.TypeHints[name] = hint
			return nil
		})
	if err != nil {
		return snap, err
	}

	err = s.query(ctx, `SELECT name FROM accessed_properties WHERE session_id = ? ORDER BY name`,
		[]any{id}, func(rows *sql.Rows) error {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			snap.AccessedProperties = append(snap.AccessedProperties, name)
			return nil
		})
	if err != nil {
		return snap, err
	}

	snap.Units = make(map[string]string)
	err = s.query(ctx, `SELECT path, unit_id FROM units WHERE session_id = ?`,
		[]any{id}, func(rows *sql.Rows) error {
			var path, unitID string
			if err := rows.Scan(&path, &unitID); err != nil {
				return err
			}
			snap.Units[path] = unitID
			return nil
		})
	return snap, err
}

// Sessions lists the stored sessions, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sessions []Session
	err := s.query(ctx, `SELECT id, class_init_version, created_at_utc FROM sessions ORDER BY created_at_utc, id`,
		nil, func(rows *sql.Rows) error {
			var (
				sess    Session
				version int64
				tsRaw   string
			)
			if err := rows.Scan(&sess.ID, &version, &tsRaw); err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339Nano, tsRaw)
			if err != nil {
				return fmt.Errorf("parse session timestamp %q: %w", tsRaw, err)
			}
			sess.ClassInitVersion = uint64(version)
			sess.CreatedAt = ts.UTC()
			sessions = append(sessions, sess)
			return nil
		})
	return sessions, err
}

func (s *Store) query(ctx context.Context, query string, args []any, scan func(*sql.Rows) error) error {
	var rows *sql.Rows
	err := s.withRetry("query", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

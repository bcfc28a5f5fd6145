/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage persists the role/conflict projection of an ingestion
// batch in SQLite (default, pure Go) or PostgreSQL through pgx.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"scriptcast/internal/domain"
	applog "scriptcast/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and pgx.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store wraps a database handle with the projection schema applied.
type Store struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// Open connects to the database and applies pending migrations. For sqlite
// the dsn is a file path (its directory is created) or a "file:" URI.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("driver", driver))
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("storage dsn is required")
	}
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = openSQLite(ctx, dsn)
	case DriverPostgres:
		db, err = openPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		l.Error("open failed", slog.Any("err", err))
		return nil, err
	}
	s := &Store{db: db, driver: driver, log: applog.WithComponent("storage")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("store ready")
	return s, nil
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
	}
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps the pragmas below in effect
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, q := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA foreign_keys=ON;"} {
		if _, err := db.ExecContext(ctx, q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", q, err)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders as $1..$n for PostgreSQL.
func rebind(driver, q string) string {
	if driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) q(query string) string { return rebind(s.driver, query) }

// migrate applies embedded migrations in file order. Each file runs in its
// own transaction together with its schema_migrations row.
func (s *Store) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
			version, fname, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
		s.log.Info("migration applied", slog.String("name", fname))
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	base := path.Base(name)
	parts := strings.SplitN(base, "_", 2)
	v, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v.Int64, nil
}

// Import summarizes one saved projection.
type Import struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
	Roles     int       `json:"roles"`
	Conflicts int       `json:"conflicts"`
}

// SaveProjection stores proj as a new import in one transaction. Roles get
// uuids; a child's parent_role_id (a normalized name in proj) is resolved to
// the parent's uuid, and conflicts are resolved by normalized name. Duplicate
// roles and conflicts naming unknown roles are skipped.
func (s *Store) SaveProjection(ctx context.Context, files []string, proj domain.DbProjection) (Import, error) {
	l := applog.WithOperation(s.log, "save_projection")
	imp := Import{ID: uuid.NewString(), CreatedAt: time.Now().UTC().Truncate(time.Second), Files: files}
	if imp.Files == nil {
		imp.Files = []string{}
	}
	filesJSON, err := json.Marshal(imp.Files)
	if err != nil {
		return Import{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Import{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO imports (id, created_at, files, role_count, conflict_count) VALUES (?, ?, ?, 0, 0)`),
		imp.ID, imp.CreatedAt.Format(time.RFC3339), string(filesJSON)); err != nil {
		return Import{}, fmt.Errorf("insert import: %w", err)
	}

	ids := make(map[string]string, len(proj.Roles))
	insertRole := func(pos int, r domain.RoleForDatabase, parent sql.NullString) error {
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO roles
			(id, import_id, role_name, role_name_normalized, replicas_needed, parent_role_id, source, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			id, imp.ID, r.RoleName, r.RoleNameNormalized, r.ReplicasNeeded, parent, r.Source, pos); err != nil {
			return fmt.Errorf("insert role %s: %w", r.RoleNameNormalized, err)
		}
		ids[r.RoleNameNormalized] = id
		imp.Roles++
		return nil
	}
	// parents first so the foreign key always points at an existing row
	for i, r := range proj.Roles {
		if r.ParentRoleID != "" || ids[r.RoleNameNormalized] != "" {
			continue
		}
		if err := insertRole(i, r, sql.NullString{}); err != nil {
			return Import{}, err
		}
	}
	for i, r := range proj.Roles {
		if r.ParentRoleID == "" || ids[r.RoleNameNormalized] != "" {
			continue
		}
		parent := sql.NullString{}
		if pid, ok := ids[r.ParentRoleID]; ok {
			parent = sql.NullString{String: pid, Valid: true}
		} else {
			l.Warn("parent role not found", slog.String("role", r.RoleNameNormalized), slog.String("parent", r.ParentRoleID))
		}
		if err := insertRole(i, r, parent); err != nil {
			return Import{}, err
		}
	}

	for i, c := range proj.Conflicts {
		a, okA := ids[c.RoleNameA]
		b, okB := ids[c.RoleNameB]
		if !okA || !okB {
			l.Debug("conflict skipped", slog.String("a", c.RoleNameA), slog.String("b", c.RoleNameB))
			continue
		}
		scene := sql.NullString{String: c.SceneReference, Valid: c.SceneReference != ""}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO role_conflicts
			(id, import_id, role_id_a, role_id_b, warning_type, scene_reference, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), imp.ID, a, b, c.WarningType, scene, i); err != nil {
			return Import{}, fmt.Errorf("insert conflict: %w", err)
		}
		imp.Conflicts++
	}

	if _, err := tx.ExecContext(ctx, s.q(`UPDATE imports SET role_count=?, conflict_count=? WHERE id=?`),
		imp.Roles, imp.Conflicts, imp.ID); err != nil {
		return Import{}, fmt.Errorf("update import counts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Import{}, fmt.Errorf("commit: %w", err)
	}
	l.Info("projection saved", slog.String("import", imp.ID), slog.Int("roles", imp.Roles), slog.Int("conflicts", imp.Conflicts))
	return imp, nil
}

// Imports lists saved imports, newest first.
func (s *Store) Imports(ctx context.Context) ([]Import, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, created_at, files, role_count, conflict_count FROM imports ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("select imports: %w", err)
	}
	defer rows.Close()
	var out []Import
	for rows.Next() {
		var (
			imp          Import
			created, fjs string
		)
		if err := rows.Scan(&imp.ID, &created, &fjs, &imp.Roles, &imp.Conflicts); err != nil {
			return nil, err
		}
		imp.CreatedAt, _ = time.Parse(time.RFC3339, created)
		if err := json.Unmarshal([]byte(fjs), &imp.Files); err != nil {
			return nil, fmt.Errorf("import %s files: %w", imp.ID, err)
		}
		out = append(out, imp)
	}
	return out, rows.Err()
}

// StoredRole is a persisted role. ParentRoleID is the parent's uuid.
type StoredRole struct {
	ID string `json:"id"`
	domain.RoleForDatabase
}

// Roles returns the roles of an import in projection order.
func (s *Store) Roles(ctx context.Context, importID string) ([]StoredRole, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, role_name, role_name_normalized, replicas_needed, parent_role_id, source
		FROM roles WHERE import_id=? ORDER BY position`), importID)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	defer rows.Close()
	var out []StoredRole
	for rows.Next() {
		var (
			r      StoredRole
			parent sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.RoleName, &r.RoleNameNormalized, &r.ReplicasNeeded, &parent, &r.Source); err != nil {
			return nil, err
		}
		r.ParentRoleID = parent.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// StoredConflict is a persisted conflict with both role ids and names.
type StoredConflict struct {
	ID      string `json:"id"`
	RoleIDA string `json:"role_id_a"`
	RoleIDB string `json:"role_id_b"`
	domain.ConflictForDatabase
}

// Conflicts returns the conflicts of an import in projection order.
func (s *Store) Conflicts(ctx context.Context, importID string) ([]StoredConflict, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT c.id, c.role_id_a, c.role_id_b, a.role_name_normalized, b.role_name_normalized,
			c.warning_type, c.scene_reference
		FROM role_conflicts c
		JOIN roles a ON a.id = c.role_id_a
		JOIN roles b ON b.id = c.role_id_b
		WHERE c.import_id=? ORDER BY c.position`), importID)
	if err != nil {
		return nil, fmt.Errorf("select conflicts: %w", err)
	}
	defer rows.Close()
	var out []StoredConflict
	for rows.Next() {
		var (
			c     StoredConflict
			scene sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.RoleIDA, &c.RoleIDB, &c.RoleNameA, &c.RoleNameB, &c.WarningType, &scene); err != nil {
			return nil, err
		}
		c.SceneReference = scene.String
		out = append(out, c)
	}
	return out, rows.Err()
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"scriptcast/internal/domain"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "scriptcast.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenAppliesMigrationsOnce(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	v, err := s.SchemaVersion(ctx)
	if err != nil || v != 2 {
		t.Fatalf("schema version = %d, %v", v, err)
	}
	var mode string
	if err := s.db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("journal mode = %s", mode)
	}
	_ = s.Close()

	s2, err := Open(ctx, DriverSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	var n int
	if err := s2.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil || n != 2 {
		t.Fatalf("schema_migrations rows = %d, %v", n, err)
	}
}

func TestOpenUpgradesOlderSchema(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()
	for _, q := range []string{
		"DELETE FROM schema_migrations WHERE version = 2",
		"DROP INDEX idx_roles_import",
		"DROP INDEX idx_roles_parent",
		"DROP INDEX idx_role_conflicts_import",
	} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	_ = s.Close()

	s2, err := Open(ctx, DriverSQLite, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if v, _ := s2.SchemaVersion(ctx); v != 2 {
		t.Fatalf("schema version after upgrade = %d", v)
	}
	var name string
	if err := s2.db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='index' AND name='idx_roles_parent'").Scan(&name); err != nil {
		t.Fatalf("index not recreated: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("err = %v", err)
	}
	if _, err := Open(context.Background(), DriverSQLite, " "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
}

func TestSaveProjectionResolvesParentsAndConflicts(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	proj := domain.DbProjection{
		Roles: []domain.RoleForDatabase{
			{RoleName: "JOHN", RoleNameNormalized: "JOHN", ReplicasNeeded: 5, Source: "script"},
			{RoleName: "YOUNG JOHN", RoleNameNormalized: "YOUNG JOHN", ReplicasNeeded: 1, Source: "script", ParentRoleID: "JOHN"},
			{RoleName: "SARAH", RoleNameNormalized: "SARAH", ReplicasNeeded: 2, Source: "script"},
			{RoleName: "SARAH", RoleNameNormalized: "SARAH", ReplicasNeeded: 2, Source: "script"},
			{RoleName: "GHOST KID", RoleNameNormalized: "GHOST KID", ReplicasNeeded: 1, Source: "script", ParentRoleID: "GHOST"},
		},
		Conflicts: []domain.ConflictForDatabase{
			{RoleNameA: "JOHN", RoleNameB: "SARAH", WarningType: "same_scene", SceneReference: "INT. OFFICE"},
			{RoleNameA: "JOHN", RoleNameB: "NOBODY", WarningType: "same_scene"},
			{RoleNameA: "YOUNG JOHN", RoleNameB: "SARAH", WarningType: "same_scene"},
		},
	}
	imp, err := s.SaveProjection(ctx, []string{"a.pdf", "b.docx"}, proj)
	if err != nil {
		t.Fatalf("SaveProjection: %v", err)
	}
	if imp.ID == "" || imp.Roles != 4 || imp.Conflicts != 2 {
		t.Fatalf("import = %+v", imp)
	}

	roles, err := s.Roles(ctx, imp.ID)
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	var names []string
	ids := map[string]StoredRole{}
	for _, r := range roles {
		names = append(names, r.RoleNameNormalized)
		ids[r.RoleNameNormalized] = r
	}
	if want := []string{"JOHN", "YOUNG JOHN", "SARAH", "GHOST KID"}; !reflect.DeepEqual(names, want) {
		t.Fatalf("roles = %q, want %q", names, want)
	}
	if ids["YOUNG JOHN"].ParentRoleID != ids["JOHN"].ID {
		t.Fatalf("parent = %q, want %q", ids["YOUNG JOHN"].ParentRoleID, ids["JOHN"].ID)
	}
	if ids["GHOST KID"].ParentRoleID != "" || ids["JOHN"].ReplicasNeeded != 5 {
		t.Fatalf("roles = %+v", roles)
	}

	conflicts, err := s.Conflicts(ctx, imp.ID)
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(conflicts) != 2 {
		t.Fatalf("conflicts = %+v", conflicts)
	}
	c := conflicts[0]
	if c.RoleNameA != "JOHN" || c.RoleNameB != "SARAH" || c.RoleIDA != ids["JOHN"].ID || c.SceneReference != "INT. OFFICE" {
		t.Fatalf("conflict = %+v", c)
	}
	if conflicts[1].SceneReference != "" || conflicts[1].RoleNameA != "YOUNG JOHN" {
		t.Fatalf("conflict = %+v", conflicts[1])
	}

	imps, err := s.Imports(ctx)
	if err != nil || len(imps) != 1 {
		t.Fatalf("Imports = %+v, %v", imps, err)
	}
	if !reflect.DeepEqual(imps[0].Files, []string{"a.pdf", "b.docx"}) || imps[0].Roles != 4 || imps[0].Conflicts != 2 {
		t.Fatalf("import = %+v", imps[0])
	}
	if time.Since(imps[0].CreatedAt) > time.Minute {
		t.Fatalf("created_at = %v", imps[0].CreatedAt)
	}
}

func TestSaveProjectionImportsAreIndependent(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	proj := domain.DbProjection{Roles: []domain.RoleForDatabase{{RoleName: "JOHN", RoleNameNormalized: "JOHN", ReplicasNeeded: 1, Source: "script"}}}
	for i := 0; i < 3; i++ {
		if _, err := s.SaveProjection(ctx, []string{fmt.Sprintf("f%d.txt", i)}, proj); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	imps, err := s.Imports(ctx)
	if err != nil || len(imps) != 3 {
		t.Fatalf("Imports = %d, %v", len(imps), err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM roles").Scan(&n); err != nil || n != 3 {
		t.Fatalf("roles = %d, %v", n, err)
	}
	// cascading delete clears roles of one import
	if _, err := s.db.ExecContext(ctx, "DELETE FROM imports WHERE id = ?", imps[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	roles, err := s.Roles(ctx, imps[0].ID)
	if err != nil || len(roles) != 0 {
		t.Fatalf("roles after delete = %+v, %v", roles, err)
	}
}

func TestRebind(t *testing.T) {
	q := "INSERT INTO t (a, b) VALUES (?, ?)"
	if got := rebind(DriverSQLite, q); got != q {
		t.Fatalf("sqlite rebind = %q", got)
	}
	if got := rebind(DriverPostgres, q); got != "INSERT INTO t (a, b) VALUES ($1, $2)" {
		t.Fatalf("pgx rebind = %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_lookup_indexes.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error")
	}
}

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/schemareflect/internal/schema"
)

const sqliteFixture = `
CREATE TABLE orgs (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	email TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	org_id INTEGER REFERENCES orgs(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX users_email_idx ON users(email);

CREATE TABLE memberships (
	org_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	role TEXT,
	PRIMARY KEY (user_id, org_id),
	FOREIGN KEY (user_id) REFERENCES users
);

CREATE INDEX memberships_role_org_idx ON memberships(role, org_id);

CREATE TABLE "odd ""quoted"" name" (
	value TEXT
);

-- close to the reserved sqlite_ prefix but still user tables;
-- AUTOINCREMENT also creates the internal sqlite_sequence table
CREATE TABLE sqlite1 (id INTEGER PRIMARY KEY AUTOINCREMENT);
CREATE TABLE sqlites_log (entry TEXT);

CREATE VIEW active_users AS SELECT * FROM users WHERE status = 'active';
`

func newSQLiteFixture(t *testing.T) *SQLiteClient {
	t.Helper()
	ctx := context.Background()

	client, err := NewSQLiteClient(ctx, filepath.Join(t.TempDir(), "fixture.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.GetDB().ExecContext(ctx, sqliteFixture)
	require.NoError(t, err)
	return client
}

func TestSQLiteCatalog_ListBaseTables(t *testing.T) {
	client := newSQLiteFixture(t)
	catalog := NewSQLiteCatalog(client.GetDB())

	tables, err := catalog.ListBaseTables(context.Background(), DefaultSQLiteNamespace)
	require.NoError(t, err)
	assert.Equal(t, []string{"memberships", `odd "quoted" name`, "orgs", "sqlite1", "sqlites_log", "users"}, tables)
}

func TestSQLiteCatalog_Reflect(t *testing.T) {
	client := newSQLiteFixture(t)
	catalog := NewSQLiteCatalog(client.GetDB())

	res, err := NewReflector(catalog, DefaultSQLiteNamespace, ReflectorOptions{}).Reflect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	s := res.Schema
	assert.Equal(t, []string{"memberships", `odd "quoted" name`, "orgs", "sqlite1", "sqlites_log", "users"}, s.TableNames())

	users := s.Tables["users"]
	assert.Equal(t, []string{"id"}, users.PrimaryKey)

	names := make([]string, len(users.Columns))
	for i, c := range users.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "email", "status", "org_id"}, names)

	email := users.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "TEXT", email.Type)
	assert.False(t, email.Nullable)
	assert.Nil(t, email.Default)

	status := users.Column("status")
	require.NotNil(t, status)
	require.NotNil(t, status.Default)
	assert.Equal(t, "'active'", *status.Default)

	orgID := users.Column("org_id")
	require.NotNil(t, orgID)
	assert.True(t, orgID.Nullable)
	want := &schema.ForeignKey{
		Table:    "orgs",
		Column:   "id",
		OnDelete: strPtr("CASCADE"),
		OnUpdate: strPtr("NO ACTION"),
	}
	if diff := cmp.Diff(want, orgID.References); diff != "" {
		t.Errorf("org_id references mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []schema.Index{{Name: "users_email_idx", Columns: []string{"email"}, Unique: true}}, users.Indexes)

	memberships := s.Tables["memberships"]
	assert.Equal(t, []string{"user_id", "org_id"}, memberships.PrimaryKey)
	assert.Equal(t, []schema.Index{{Name: "memberships_role_org_idx", Columns: []string{"role", "org_id"}, Unique: false}}, memberships.Indexes)

	userID := memberships.Column("user_id")
	require.NotNil(t, userID)
	require.NotNil(t, userID.References)
	assert.Equal(t, "users", userID.References.Table)
	assert.Equal(t, "id", userID.References.Column)

	quoted := s.Tables[`odd "quoted" name`]
	require.Len(t, quoted.Columns, 1)
	assert.Equal(t, "value", quoted.Columns[0].Name)
	assert.Empty(t, quoted.PrimaryKey)
	assert.NotNil(t, quoted.PrimaryKey)
}

func TestSQLiteCatalog_Sequential(t *testing.T) {
	client := newSQLiteFixture(t)
	catalog := NewSQLiteCatalog(client.GetDB())

	parallel, err := NewReflector(catalog, DefaultSQLiteNamespace, ReflectorOptions{Concurrency: 4}).Reflect(context.Background())
	require.NoError(t, err)
	sequential, err := NewReflector(catalog, DefaultSQLiteNamespace, ReflectorOptions{Concurrency: 1}).Reflect(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(sequential.Schema, parallel.Schema); diff != "" {
		t.Errorf("schemas differ (-sequential +parallel):\n%s", diff)
	}
}

func TestSQLiteCatalog_Errors(t *testing.T) {
	client := newSQLiteFixture(t)
	catalog := NewSQLiteCatalog(client.GetDB())
	ctx := context.Background()

	t.Run("invalid namespace identifier", func(t *testing.T) {
		_, err := catalog.ListBaseTables(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("unattached namespace", func(t *testing.T) {
		_, err := NewReflector(catalog, "nope", ReflectorOptions{}).Reflect(ctx)
		require.Error(t, err)

		var ce *CatalogError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, StageListTables, ce.Stage)
		assert.True(t, IsQueryFailed(err))
	})

	t.Run("closed connection", func(t *testing.T) {
		closed := newSQLiteFixture(t)
		require.NoError(t, closed.Close())

		_, err := NewReflector(NewSQLiteCatalog(closed.GetDB()), DefaultSQLiteNamespace, ReflectorOptions{}).Reflect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), string(StageListTables))
	})
}

//go:build integration

package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/tordrt/schemareflect/internal/schema"
)

const postgresFixture = `
CREATE SCHEMA app;

CREATE TABLE app.orgs (
	id SERIAL PRIMARY KEY,
	region TEXT NOT NULL,
	code TEXT NOT NULL,
	UNIQUE (region, code)
);

CREATE TABLE app.users (
	id SERIAL PRIMARY KEY,
	email TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	org_id INTEGER REFERENCES app.orgs(id) ON DELETE CASCADE
);

CREATE UNIQUE INDEX users_email_idx ON app.users (email);
CREATE INDEX users_lower_email_idx ON app.users (lower(email));
CREATE INDEX users_status_lower_idx ON app.users (status, lower(email));

CREATE TABLE app.offices (
	id SERIAL PRIMARY KEY,
	org_region TEXT NOT NULL,
	org_code TEXT NOT NULL,
	FOREIGN KEY (org_code, org_region) REFERENCES app.orgs (code, region) ON UPDATE CASCADE
);

CREATE TABLE app.memberships (
	user_id INTEGER NOT NULL,
	org_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, org_id)
);

CREATE VIEW app.active_users AS SELECT * FROM app.users WHERE status = 'active';

-- same table name in another namespace must not leak into app
CREATE TABLE public.users (id INTEGER PRIMARY KEY, nickname TEXT);
`

func TestPostgresCatalog_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := t.Context()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := NewPostgresClient(ctx, connStr, DefaultPoolConfig())
	require.NoError(t, err)
	t.Cleanup(client.Close)

	_, err = client.GetPool().Exec(ctx, postgresFixture)
	require.NoError(t, err)

	res, err := NewReflector(NewPostgresCatalog(client.GetPool()), "app", ReflectorOptions{}).Reflect(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	s := res.Schema
	assert.Equal(t, []string{"memberships", "offices", "orgs", "users"}, s.TableNames())

	users := s.Tables["users"]
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	require.Len(t, users.Columns, 4)
	assert.Nil(t, users.Column("nickname"))

	email := users.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "text", email.Type)
	assert.False(t, email.Nullable)

	status := users.Column("status")
	require.NotNil(t, status)
	require.NotNil(t, status.Default)
	assert.Equal(t, "'active'::text", *status.Default)

	orgID := users.Column("org_id")
	require.NotNil(t, orgID)
	require.NotNil(t, orgID.References)
	assert.Equal(t, "orgs", orgID.References.Table)
	assert.Equal(t, "id", orgID.References.Column)
	assert.Equal(t, "CASCADE", *orgID.References.OnDelete)
	assert.Equal(t, "NO ACTION", *orgID.References.OnUpdate)

	// expression key parts are not reported; a pure expression index is dropped
	assert.Equal(t, []schema.Index{
		{Name: "users_email_idx", Columns: []string{"email"}, Unique: true},
		{Name: "users_status_lower_idx", Columns: []string{"status"}},
	}, users.Indexes)

	// composite references pair by key position
	offices := s.Tables["offices"]
	region := offices.Column("org_region")
	code := offices.Column("org_code")
	require.NotNil(t, region.References)
	require.NotNil(t, code.References)
	assert.Equal(t, "region", region.References.Column)
	assert.Equal(t, "code", code.References.Column)
	assert.Equal(t, "CASCADE", *code.References.OnUpdate)

	orgs := s.Tables["orgs"]
	require.Len(t, orgs.Indexes, 1)
	assert.Equal(t, []string{"region", "code"}, orgs.Indexes[0].Columns)
	assert.True(t, orgs.Indexes[0].Unique)

	assert.Equal(t, []string{"user_id", "org_id"}, s.Tables["memberships"].PrimaryKey)
}

const mysqlFixture = `
CREATE TABLE orgs (
	id INT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(100) NOT NULL
);

CREATE TABLE users (
	id INT AUTO_INCREMENT PRIMARY KEY,
	email VARCHAR(255) NOT NULL,
	status ENUM('active', 'disabled') NOT NULL DEFAULT 'active',
	org_id INT NULL,
	UNIQUE KEY users_email_idx (email),
	CONSTRAINT users_org_fk FOREIGN KEY (org_id) REFERENCES orgs(id) ON DELETE CASCADE
);
`

func TestMySQLCatalog_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := t.Context()

	container, err := tcmysql.Run(ctx,
		"mysql:8.4",
		tcmysql.WithDatabase("testdb"),
		tcmysql.WithUsername("testuser"),
		tcmysql.WithPassword("testpass"),
	)
	require.NoError(t, err)
	testcontainers.CleanupContainer(t, container)

	dsn, err := container.ConnectionString(ctx, "multiStatements=true")
	require.NoError(t, err)

	client, err := NewMySQLClient(ctx, dsn, 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.Equal(t, "testdb", client.DatabaseName())

	_, err = client.GetDB().ExecContext(ctx, mysqlFixture)
	require.NoError(t, err)

	res, err := NewReflector(NewMySQLCatalog(client.GetDB()), client.DatabaseName(), ReflectorOptions{}).Reflect(ctx)
	require.NoError(t, err)

	s := res.Schema
	assert.Equal(t, []string{"orgs", "users"}, s.TableNames())

	users := s.Tables["users"]
	assert.Equal(t, []string{"id"}, users.PrimaryKey)

	email := users.Column("email")
	require.NotNil(t, email)
	assert.Equal(t, "varchar(255)", email.Type)

	status := users.Column("status")
	require.NotNil(t, status)
	assert.Equal(t, "enum('active','disabled')", status.Type)
	require.NotNil(t, status.Default)
	assert.Equal(t, "active", *status.Default)

	orgID := users.Column("org_id")
	require.NotNil(t, orgID)
	require.NotNil(t, orgID.References)
	assert.Equal(t, "orgs", orgID.References.Table)
	assert.Equal(t, "CASCADE", *orgID.References.OnDelete)

	idx := map[string]schema.Index{}
	for _, i := range users.Indexes {
		idx[i.Name] = i
	}
	assert.Equal(t, schema.Index{Name: "users_email_idx", Columns: []string{"email"}, Unique: true}, idx["users_email_idx"])
	// InnoDB backs the foreign key with its own index
	assert.Equal(t, []string{"org_id"}, idx["users_org_fk"].Columns)
}

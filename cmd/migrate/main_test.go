package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  int
		name     string
		ok       bool
	}{
		{"0001_init_schema_migrations.sql", 1, "init_schema_migrations", true},
		{"0042_add_index.sql", 42, "add_index", true},
		{"001_short.sql", 0, "", false},
		{"0001_missing_ext", 0, "", false},
		{"README.md", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseFilename(tt.filename)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, version)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestRenderSQL(t *testing.T) {
	got := renderSQL("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.t` (x INT64); -- {{DATASET_ID}}", "proj", "ds")
	assert.Equal(t, "CREATE TABLE `proj.ds.t` (x INT64); -- ds", got)
}

func TestReadMigrations(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("0002_second.sql", "SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.x`")
	write("0001_first.sql", "SELECT 1")
	write("notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	migrations, err := readMigrations(zerolog.Nop(), dir, "p", "d")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "SELECT 2 FROM `p.d.x`", migrations[1].SQL)
	assert.Equal(t, checksum([]byte("SELECT 2 FROM `{{PROJECT_ID}}.{{DATASET_ID}}.x`")), migrations[1].Checksum)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_a.sql"), []byte("SELECT 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_b.sql"), []byte("SELECT 1"), 0o644))

	_, err := readMigrations(zerolog.Nop(), dir, "p", "d")
	assert.ErrorContains(t, err, "duplicate migration version 0001")
}

func TestReadMigrations_ShippedDirectory(t *testing.T) {
	migrations, err := readMigrations(zerolog.Nop(), "../../migrations/bigquery", "p", "d")
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version, "versions are contiguous")
		assert.NotContains(t, m.SQL, "{{")
	}
}

func TestPending(t *testing.T) {
	migrations := []Migration{
		{Version: 1, Filename: "0001_a.sql", Checksum: "aaa"},
		{Version: 2, Filename: "0002_b.sql", Checksum: "bbb"},
		{Version: 3, Filename: "0003_c.sql", Checksum: "ccc"},
	}
	applied := []AppliedMigration{
		{Version: 1, Checksum: "aaa"},
		{Version: 2, Checksum: "changed"},
	}

	todo, drifted := pending(migrations, applied)
	require.Len(t, todo, 1)
	assert.Equal(t, 3, todo[0].Version)
	require.Len(t, drifted, 1)
	assert.Equal(t, 2, drifted[0].Version)
}

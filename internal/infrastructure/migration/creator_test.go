package migration

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/erp/posting/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add clearing index", "add_clearing_index"},
		{"Add-Clearing-Index", "add_clearing_index"},
		{"ADD_CLEARING_INDEX", "add_clearing_index"},
		{"add__clearing__index", "add_clearing_index"},
		{"Tax Rules 2", "tax_rules_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_posting_core.up.sql"), []byte("--"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_posting_core.down.sql"), []byte("--"), 0o644))

	mf, err := CreateMigration(dir, "add clearing index", "Index clearings by partner")
	require.NoError(t, err)
	assert.Equal(t, "000002", mf.Version)
	assert.Equal(t, filepath.Join(dir, "000002_add_clearing_index.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "000002_add_clearing_index.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "add clearing index")
	assert.Contains(t, string(up), "Index clearings by partner")
	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	mf, err = CreateMigration(dir, "next", "")
	require.NoError(t, err)
	assert.Equal(t, "000003", mf.Version)
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(nested, "init", "")
	require.NoError(t, err)
	assert.Equal(t, "000001", mf.Version)

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestCreateMigration_RejectsUnnumberedMigrations(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "init.up.sql"), []byte("--"), 0o644))
	_, err := CreateMigration(dir, "next", "")
	assert.ErrorContains(t, err, "no numeric version")
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_add_index.up.sql":   {Data: []byte("--")},
		"000002_add_index.down.sql": {Data: []byte("--")},
		"000001_init.up.sql":        {Data: []byte("--")},
		"000001_init.down.sql":      {Data: []byte("--")},
		"README.md":                 {Data: []byte("x")},
		"subdir.up.sql/file":        {Data: []byte("x")},
	}
	got, err := ListMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_init", "000002_add_index"}, got)
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	got, err := ListMigrations(os.DirFS("/nonexistent/path/to/migrations"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Equal(t, "000001_posting_core", ups[0])
	for _, base := range ups {
		_, err := migrations.FS.Open(base + ".down.sql")
		assert.NoError(t, err, base)
	}
}

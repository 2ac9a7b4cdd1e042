package migrate

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL)
	}
	assert.Contains(t, migrations[1].UpSQL, "CREATE TABLE IF NOT EXISTS appointments")
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/0010_b.sql": {Data: []byte("SELECT 10;")},
		"sql/0002_a.sql": {Data: []byte("SELECT 2;")},
	}

	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"sql/init.sql": {Data: []byte("SELECT 1;")}})
	assert.Error(t, err)

	_, err = loadMigrations(fstest.MapFS{
		"sql/0001_a.sql": {Data: []byte("SELECT 1;")},
		"sql/0001_b.sql": {Data: []byte("SELECT 1;")},
	})
	assert.Error(t, err)
}

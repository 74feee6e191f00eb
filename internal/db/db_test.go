package db

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationVersionsAreOrdered(t *testing.T) {
	versions, err := migrationVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)

	assert.Equal(t, "0001_init.up.sql", versions[0])
	for i := 1; i < len(versions); i++ {
		assert.Less(t, versions[i-1], versions[i])
	}
}

func TestInitMigrationCascadesThreadDeletes(t *testing.T) {
	contents, err := migrationFiles.ReadFile("migrations/0001_init.up.sql")
	require.NoError(t, err)
	sql := string(contents)

	for _, table := range []string{"threads", "thread_participants", "messages", "profiles", "connections"} {
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+table)
	}
	assert.Equal(t, 2, strings.Count(sql, "REFERENCES threads(thread_id) ON DELETE CASCADE"))
	assert.Contains(t, sql, "CHECK (user_id_1 < user_id_2)")
}

func TestConnectWrapsDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Connect(ctx, "postgres://lineup@127.0.0.1:1/lineup?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "connect db: "), err.Error())
}

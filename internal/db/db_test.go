package db

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGormLogger_LevelByEnvironment(t *testing.T) {
	tests := []struct {
		env     string
		logInfo bool
	}{
		{"development", true},
		{"production", false},
		{"test", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			gl := newGormLogger(tt.env, zerolog.New(&buf))

			gl.Info(context.Background(), "opened %s", "pool")
			gl.Warn(context.Background(), "slow %s", "query")

			out := buf.String()
			assert.Equal(t, tt.logInfo, bytes.Contains(buf.Bytes(), []byte("opened pool")))
			assert.Contains(t, out, "slow query")
			assert.Contains(t, out, `"component":"gorm"`)
		})
	}
}

func TestMigrationStatements_Idempotent(t *testing.T) {
	prefixes := []string{"CREATE TABLE", "CREATE EXTENSION", "CREATE INDEX", "CREATE UNIQUE INDEX"}
	for i, stmt := range migrationStatements {
		for _, prefix := range prefixes {
			if strings.HasPrefix(stmt, prefix) {
				assert.Contains(t, stmt, prefix+" IF NOT EXISTS", "statement %d", i+1)
			}
		}
	}
}

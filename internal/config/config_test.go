package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/guillermoBallester/colscope/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestLoad_Valid(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "public", cfg.Schema)
	assert.Equal(t, 100, cfg.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, domain.DefaultSampleLimit, cfg.SampleLimit)
	assert.Equal(t, domain.DefaultSemanticSampleLimit, cfg.SemanticSampleLimit)
	assert.Nil(t, cfg.SemanticThreshold)
	assert.Nil(t, cfg.MinOccurrence)
	assert.Equal(t, "text", cfg.Output)
	assert.Equal(t, 5, cfg.Workers())
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load(Overrides{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_EnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("SCHEMA", "pricing")
	t.Setenv("TABLES", "aws-ec2-proc, aws-s3-proc,")
	t.Setenv("RULES_FILE", "/tmp/rules.yaml")
	t.Setenv("MAX_ROWS", "500")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEMANTIC_THRESHOLD", "0.9")
	t.Setenv("NEAR_EMPTY_THRESHOLD", "0.99")
	t.Setenv("SHARED_MIN_OCCURRENCE", "4")
	t.Setenv("SEMANTIC_SAMPLE_LIMIT", "1000")
	t.Setenv("CONCURRENCY", "8")
	t.Setenv("OUTPUT", "json")

	cfg, err := Load(Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "pricing", cfg.Schema)
	assert.Equal(t, []string{"aws-ec2-proc", "aws-s3-proc"}, cfg.Tables)
	assert.Equal(t, "/tmp/rules.yaml", cfg.RulesFile)
	assert.Equal(t, 500, cfg.MaxRows)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.NotNil(t, cfg.SemanticThreshold)
	assert.InDelta(t, 0.9, *cfg.SemanticThreshold, 1e-9)
	require.NotNil(t, cfg.NearEmptyThreshold)
	assert.InDelta(t, 0.99, *cfg.NearEmptyThreshold, 1e-9)
	require.NotNil(t, cfg.MinOccurrence)
	assert.Equal(t, 4, *cfg.MinOccurrence)
	assert.Equal(t, 1000, cfg.SemanticSampleLimit)
	assert.Equal(t, 8, cfg.Workers())
	assert.Equal(t, "json", cfg.Output)
}

func TestLoad_OverridesWinOverEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/test")
	t.Setenv("TABLES", "a,b")
	t.Setenv("SEMANTIC_THRESHOLD", "0.9")

	cfg, err := Load(Overrides{
		DatabaseURL:       ptr("postgres://flag/test"),
		Tables:            []string{"c"},
		SemanticThreshold: ptr(0.7),
		MinOccurrence:     ptr(2),
		PoolMaxConns:      ptr(int32(10)),
		AuditLog:          "/tmp/audit.jsonl",
		OTelEnabled:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, "postgres://flag/test", cfg.DatabaseURL)
	assert.Equal(t, []string{"c"}, cfg.Tables)
	assert.InDelta(t, 0.7, *cfg.SemanticThreshold, 1e-9)
	assert.Equal(t, 2, *cfg.MinOccurrence)
	assert.Equal(t, 10, cfg.Workers())
	assert.Equal(t, "/tmp/audit.jsonl", cfg.AuditLog)
	assert.True(t, cfg.OTelEnabled)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		overrides Overrides
		wantErr   string
	}{
		{name: "max rows", env: map[string]string{"MAX_ROWS": "-1"}, wantErr: "MAX_ROWS"},
		{name: "query timeout", env: map[string]string{"QUERY_TIMEOUT": "not-a-duration"}, wantErr: "QUERY_TIMEOUT"},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "invalid"}, wantErr: "LOG_LEVEL"},
		{name: "semantic threshold", env: map[string]string{"SEMANTIC_THRESHOLD": "1.2"}, wantErr: "SEMANTIC_THRESHOLD"},
		{name: "semantic threshold syntax", env: map[string]string{"SEMANTIC_THRESHOLD": "high"}, wantErr: "SEMANTIC_THRESHOLD"},
		{name: "near empty threshold", overrides: Overrides{NearEmptyThreshold: ptr(-0.5)}, wantErr: "NEAR_EMPTY_THRESHOLD"},
		{name: "min occurrence env", env: map[string]string{"SHARED_MIN_OCCURRENCE": "0"}, wantErr: "SHARED_MIN_OCCURRENCE"},
		{name: "min occurrence flag", overrides: Overrides{MinOccurrence: ptr(0)}, wantErr: "SHARED_MIN_OCCURRENCE"},
		{name: "sample limit", env: map[string]string{"SAMPLE_LIMIT": "0"}, wantErr: "SAMPLE_LIMIT"},
		{name: "concurrency flag", overrides: Overrides{Concurrency: ptr(0)}, wantErr: "--concurrency"},
		{name: "output", env: map[string]string{"OUTPUT": "xml"}, wantErr: "OUTPUT"},
		{name: "pool sizing", overrides: Overrides{PoolMinConns: ptr(int32(9))}, wantErr: "POOL_MIN_CONNS"},
		{name: "empty schema", overrides: Overrides{Schema: ptr("")}, wantErr: "SCHEMA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(tt.overrides)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ApplyTo(t *testing.T) {
	s := domain.DefaultSettings()
	s.SemanticThreshold = 0.85 // as if set by a rules file

	cfg := &Config{
		SampleLimit:         50,
		SemanticSampleLimit: 200,
		NearEmptyThreshold:  ptr(0.9),
	}
	cfg.ApplyTo(&s)

	assert.Equal(t, 50, s.SampleLimit)
	assert.Equal(t, 200, s.SemanticSampleLimit)
	assert.InDelta(t, 0.85, s.SemanticThreshold, 1e-9, "unset thresholds keep earlier values")
	assert.InDelta(t, 0.9, s.NearEmptyThreshold, 1e-9)
	assert.Equal(t, domain.DefaultMinOccurrence, s.MinOccurrence)
}

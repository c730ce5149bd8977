package rdf2rest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rdf2rest/rdf"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.ServiceType = "http://vocab.example.org/Service"
	cfg.ContainmentLink = "http://vocab.example.org/contains"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.Equal(t, "home", cfg.StorageDir)
}

func TestValidateRequiresServiceTerms(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing service type", func(c *Config) { c.ServiceType = "" }},
		{"missing containment link", func(c *Config) { c.ContainmentLink = "  " }},
		{"unbound prefix", func(c *Config) { c.ServiceType = "nope:Service" }},
		{"bad service link", func(c *Config) { c.ServiceLinks = map[string]string{"nope:p": "http://x/"} }},
		{"relative public url", func(c *Config) { c.PublicURL = "/api" }},
		{"negative batch", func(c *Config) { c.BatchSize = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestProjectorConfigExpandsTerms(t *testing.T) {
	cfg := validConfig()
	cfg.Namespaces = map[string]string{"v": "http://vocab.example.org/"}
	cfg.ServiceType = "v:Service"
	cfg.ContainmentLink = "<http://vocab.example.org/contains>"
	cfg.ServiceLinks = map[string]string{"v:repository": "http://repos.example.org/"}

	pc, err := cfg.projectorConfig()
	require.NoError(t, err)
	assert.Equal(t, rdf.IRI("http://vocab.example.org/Service"), pc.ServiceType)
	assert.Equal(t, rdf.IRI("http://vocab.example.org/contains"), pc.ContainmentLink)
	assert.Equal(t, "http://repos.example.org/", pc.ServiceLinks[rdf.IRI("http://vocab.example.org/repository")])
	assert.Equal(t, rdf.RDFNS, pc.Namespaces["rdf"])
	assert.Equal(t, "http://vocab.example.org/", pc.Namespaces["v"])
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"R2R_STORE_PATH":       "/var/lib/r2r",
		"URI_PREFIX":           "http://data.example.org/",
		"SERVICE_TYPE_URI":     "http://vocab.example.org/Service",
		"CONTAINMENT_LINK_URI": "http://vocab.example.org/contains",
		"SERVICE_LINKS":        `{"http://vocab.example.org/repo": "http://repos.example.org/"}`,
		"NAMESPACES":           `{"v": "http://vocab.example.org/"}`,
		"R2R_NATS_URL":         "nats://localhost:4222",
	}
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.Equal(t, "/var/lib/r2r", cfg.StorePath)
	assert.Equal(t, "http://data.example.org/", cfg.URIPrefix)
	assert.Equal(t, "http://repos.example.org/", cfg.ServiceLinks["http://vocab.example.org/repo"])
	assert.Equal(t, "http://vocab.example.org/", cfg.Namespaces["v"])
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.NoError(t, cfg.Validate())

	err := cfg.ApplyEnv(func(k string) string {
		if k == "NAMESPACES" {
			return "{not json"
		}
		return ""
	})
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "r2r.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
store_path: /tmp/store
service_type: http://vocab.example.org/Service
containment_link: http://vocab.example.org/contains
poll_interval: 250ms
namespaces:
  v: http://vocab.example.org/
nats:
  subject: progress
`), 0o644))

	cfg, err := LoadConfigFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/store", cfg.StorePath)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.PollInterval))
	assert.Equal(t, 1000, cfg.BatchSize, "defaults survive")
	assert.Equal(t, "progress", cfg.NATS.Subject)
	assert.Equal(t, "http://vocab.example.org/", cfg.Namespaces["v"])

	jsonPath := filepath.Join(dir, "r2r.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"uri_prefix": "urn:x:", "poll_interval": "2s", "batch_size": 10}`), 0o644))
	cfg, err = LoadConfigFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "urn:x:", cfg.URIPrefix)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 10, cfg.BatchSize)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("poll_interval: soon\n"), 0o644))
	_, err = LoadConfigFile(badPath)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestResolveStorePath(t *testing.T) {
	cfg := Config{StorePath: "/explicit"}
	assert.Equal(t, "/explicit", cfg.ResolveStorePath())

	cfg = Config{StoreName: "mine", StorageDir: "local"}
	assert.Equal(t, "mine", cfg.ResolveStorePath())

	cfg = Config{StorageDir: "home"}
	assert.Equal(t, filepath.Join(".rdf2rest", "rdf2rest"), lastTwo(cfg.ResolveStorePath()))
}

func lastTwo(p string) string {
	return filepath.Join(filepath.Base(filepath.Dir(p)), filepath.Base(p))
}

package rdf2rest

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/rdf2rest/loader"
	"github.com/brunobiangulo/rdf2rest/projector"
	"github.com/brunobiangulo/rdf2rest/rdf"
)

// Config holds all configuration for the rdf2rest engine.
type Config struct {
	// StorePath is the directory holding the triple store.
	// If empty, defaults to ~/.rdf2rest/<StoreName>.
	StorePath string `json:"store_path" yaml:"store_path"`

	// StoreName names the store directory when StorePath is empty.
	StoreName string `json:"store_name" yaml:"store_name"`

	// StorageDir controls where the store is created when StorePath
	// is not explicitly set. Options: "home" (default) uses ~/.rdf2rest/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// URIPrefix is prepended to request ids to find stored subjects.
	URIPrefix string `json:"uri_prefix" yaml:"uri_prefix"`

	// ServiceType and ContainmentLink are required. Both accept full IRIs,
	// <iri> or prefix:local forms resolved against Namespaces.
	ServiceType     string `json:"service_type" yaml:"service_type"`
	ContainmentLink string `json:"containment_link" yaml:"containment_link"`

	// ServiceLinks maps predicates to the base URL of the service that owns
	// their objects.
	ServiceLinks map[string]string `json:"service_links" yaml:"service_links"`

	// Namespaces are prefix bindings for serialized output.
	Namespaces map[string]string `json:"namespaces" yaml:"namespaces"`

	// PublicURL is the base of projected URLs. Empty derives it from
	// each request.
	PublicURL string `json:"public_url" yaml:"public_url"`

	// Loader
	PollInterval Duration `json:"poll_interval" yaml:"poll_interval"`
	BatchSize    int      `json:"batch_size" yaml:"batch_size"`

	// Optional progress publishing
	NATS NATSConfig `json:"nats" yaml:"nats"`
}

// NATSConfig configures the NATS progress publisher.
type NATSConfig struct {
	URL     string `json:"url" yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// DefaultConfig returns a Config with defaults for everything except the
// service description, which has no sensible default.
// The store lives in ~/.rdf2rest/rdf2rest by default.
func DefaultConfig() Config {
	return Config{
		StoreName:    "rdf2rest",
		StorageDir:   "home",
		PollInterval: Duration(loader.DefaultPollInterval),
		BatchSize:    loader.DefaultBatchSize,
	}
}

// LoadConfigFile reads a YAML (.yaml, .yml) or JSON file over DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. SERVICE_LINKS and
// NAMESPACES hold JSON objects.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("R2R_STORE_PATH", &c.StorePath)
	str("URI_PREFIX", &c.URIPrefix)
	str("SERVICE_TYPE_URI", &c.ServiceType)
	str("CONTAINMENT_LINK_URI", &c.ContainmentLink)
	str("R2R_PUBLIC_URL", &c.PublicURL)
	str("R2R_NATS_URL", &c.NATS.URL)

	for key, dst := range map[string]*map[string]string{
		"SERVICE_LINKS": &c.ServiceLinks,
		"NAMESPACES":    &c.Namespaces,
	} {
		v := getenv(key)
		if v == "" {
			continue
		}
		var m map[string]string
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
		}
		*dst = m
	}
	return nil
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if _, err := c.projectorConfig(); err != nil {
		return err
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: public_url %q is not an absolute URL", ErrInvalidConfig, c.PublicURL)
		}
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must not be negative", ErrInvalidConfig)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("%w: poll_interval must not be negative", ErrInvalidConfig)
	}
	return nil
}

// namespaces returns the default bindings plus the configured ones.
func (c *Config) namespaces() rdf.Namespaces {
	ns := rdf.DefaultNamespaces()
	for p, iri := range c.Namespaces {
		ns.Bind(p, iri)
	}
	return ns
}

func (c *Config) projectorConfig() (projector.Config, error) {
	ns := c.namespaces()
	expand := func(field, v string) (rdf.Term, error) {
		if strings.TrimSpace(v) == "" {
			return rdf.Term{}, fmt.Errorf("%w: no %s is defined", ErrInvalidConfig, field)
		}
		t, ok := ns.Expand(v)
		if !ok {
			return rdf.Term{}, fmt.Errorf("%w: %s %q uses an unbound prefix", ErrInvalidConfig, field, v)
		}
		return t, nil
	}

	st, err := expand("service type", c.ServiceType)
	if err != nil {
		return projector.Config{}, err
	}
	cl, err := expand("containment link", c.ContainmentLink)
	if err != nil {
		return projector.Config{}, err
	}
	links := make(map[rdf.Term]string, len(c.ServiceLinks))
	for p, base := range c.ServiceLinks {
		t, err := expand("service link", p)
		if err != nil {
			return projector.Config{}, err
		}
		links[t] = base
	}
	return projector.Config{
		URIPrefix:       c.URIPrefix,
		ServiceType:     st,
		ContainmentLink: cl,
		ServiceLinks:    links,
		Namespaces:      ns,
	}, nil
}

// ResolveStorePath returns the store directory: StorePath when set, else
// StoreName under the home or working directory per StorageDir.
func (c *Config) ResolveStorePath() string {
	if c.StorePath != "" {
		return c.StorePath
	}

	name := c.StoreName
	if name == "" {
		name = "rdf2rest"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name // fallback to cwd
		}
		return filepath.Join(home, ".rdf2rest", name)
	}
}

// Duration is a time.Duration written as "5s" in config files.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	return d.UnmarshalText([]byte(n.Value))
}

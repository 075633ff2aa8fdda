// Package config loads the YAML configuration for the relgraph server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	// Database is the path to the SQLite database file.
	Database string `yaml:"database"`

	Server  Server  `yaml:"server"`
	GraphQL GraphQL `yaml:"graphql"`
	Otel    Otel    `yaml:"otel"`
}

type Server struct {
	Addr         string   `yaml:"addr"`
	Pretty       bool     `yaml:"pretty"`
	Timeout      Duration `yaml:"timeout"`
	MaxBodyBytes int64    `yaml:"max_body_bytes"`
	CORS         []string `yaml:"cors"`
	GraphiQL     *bool    `yaml:"graphiql"`
}

type GraphQL struct {
	// Entities lists the catalog entities exposed as root connections.
	// Empty means every entity in the catalog.
	Entities []string `yaml:"entities"`
}

type Otel struct {
	Endpoint string `yaml:"endpoint"`
	Service  string `yaml:"service"`
}

// Duration parses YAML scalars like "10s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			Addr:    ":8080",
			Timeout: Duration(10 * time.Second),
		},
		Otel: Otel{Service: "relgraph"},
	}
}

// Load reads and parses the file at path on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

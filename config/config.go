// Package config holds the consent service runtime configuration, populated
// from command line flags with environment variable defaults.
package config

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
)

// DefaultDomainSalt is the public per-domain salt used when none is
// configured. Deployments serving real traffic must set their own.
const DefaultDomainSalt = "1714698752450244"

// Config is the consent service configuration.
type Config struct {
	// Host and Port of the HTTP API listener.
	Host string
	Port int
	// DataDir is the directory holding the accumulator database.
	DataDir string
	// LogLevel is one of debug, info, warn or error.
	LogLevel string
	// ArtifactsDir holds the circuit constraint system and groth16 keys.
	ArtifactsDir string
	// DomainSalt is the public per-domain salt, a decimal field element.
	DomainSalt string
	// EnableTestEndpoints registers the reset endpoint. Test and demo
	// environments only.
	EnableTestEndpoints bool
}

// New populates a Config from flags, with environment variables as
// defaults, and parses the command line.
func New() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.Host, "host", envString("CONSENT_HOST", "0.0.0.0"), "API host")
	flag.IntVar(&cfg.Port, "port", envInt("CONSENT_PORT", 8080), "API port")
	flag.StringVar(&cfg.DataDir, "dataDir", envString("CONSENT_DATADIR", ".consentd"), "data directory")
	flag.StringVar(&cfg.LogLevel, "logLevel", envString("CONSENT_LOGLEVEL", "info"), "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.ArtifactsDir, "artifacts", envString("CONSENT_ARTIFACTS", ".consentd/artifacts"), "circuit artifacts directory")
	flag.StringVar(&cfg.DomainSalt, "domainSalt", envString("CONSENT_DOMAINSALT", DefaultDomainSalt), "public domain salt (decimal)")
	flag.BoolVar(&cfg.EnableTestEndpoints, "enableTestEndpoints", envBool("CONSENT_TEST_ENDPOINTS", false), "register test-only endpoints")
	flag.Parse()
	return cfg
}

// Salt parses the configured domain salt.
func (cfg *Config) Salt() (*big.Int, error) {
	salt, ok := new(big.Int).SetString(cfg.DomainSalt, 10)
	if !ok {
		return nil, fmt.Errorf("domain salt is not a decimal number: %q", cfg.DomainSalt)
	}
	return salt, nil
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

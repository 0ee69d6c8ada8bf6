// Package config provides centralized configuration management.
// All environment lookups live here instead of scattered os.Getenv calls.
package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FedEnv holds all fedbook environment variables.
type FedEnv struct {
	// GeminiKey is the policy reviewer API key (GEMINI_API_KEY, with
	// GOOGLE_API_KEY as fallback)
	GeminiKey string

	// GeminiModel is the reviewer model identifier (GEMINI_MODEL)
	GeminiModel string

	// KernelURL is the base URL of the kernel server (FEDBOOK_KERNEL_URL)
	KernelURL string

	// UploadsDir is the dataset uploads root scanned for provider
	// folders (FEDBOOK_UPLOADS)
	UploadsDir string

	// ReviewTimeout bounds one policy review call (FEDBOOK_REVIEW_TIMEOUT)
	ReviewTimeout time.Duration

	// ExecTimeout bounds one kernel execute call (FEDBOOK_EXEC_TIMEOUT)
	ExecTimeout time.Duration

	// Neo4jURI is the lifecycle event graph URI (NEO4J_URI)
	Neo4jURI string

	// Neo4jUser is the graph database user (NEO4J_USER)
	Neo4jUser string

	// Neo4jPassword is the graph database password (NEO4J_PASSWORD)
	Neo4jPassword string
}

var (
	env     *FedEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *FedEnv {
	envOnce.Do(func() {
		key := os.Getenv("GEMINI_API_KEY")
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		env = &FedEnv{
			GeminiKey:     key,
			GeminiModel:   getEnvDefault("GEMINI_MODEL", "gemini-1.5-pro"),
			KernelURL:     getEnvDefault("FEDBOOK_KERNEL_URL", "http://localhost:5001"),
			UploadsDir:    os.Getenv("FEDBOOK_UPLOADS"),
			ReviewTimeout: getEnvDuration("FEDBOOK_REVIEW_TIMEOUT", 60*time.Second),
			ExecTimeout:   getEnvDuration("FEDBOOK_EXEC_TIMEOUT", 120*time.Second),
			Neo4jURI:      getEnvDefault("NEO4J_URI", "bolt://localhost:7687"),
			Neo4jUser:     os.Getenv("NEO4J_USER"),
			Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// Paths holds standard fedbook directory paths.
type Paths struct {
	// Home is the fedbook home directory (~/.fedbook)
	Home string

	// Data is the store directory (~/.fedbook/data)
	Data string

	// Notebooks is where notebook documents are written (~/.fedbook/notebooks)
	Notebooks string

	// Audit is the audit log directory (~/.fedbook/audit)
	Audit string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		fbHome := getEnvDefault("FEDBOOK_HOME", filepath.Join(home, ".fedbook"))

		paths = &Paths{
			Home:      fbHome,
			Data:      filepath.Join(fbHome, "data"),
			Notebooks: filepath.Join(fbHome, "notebooks"),
			Audit:     filepath.Join(fbHome, "audit"),
		}
	})
	return paths
}

// ResetPaths resets the cached paths (for testing).
func ResetPaths() {
	pathsOnce = sync.Once{}
	paths = nil
}

// Path returns a path under the fedbook home directory.
func Path(parts ...string) string {
	p := GetPaths()
	allParts := append([]string{p.Home}, parts...)
	return filepath.Join(allParts...)
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnv(t *testing.T) {
	// Reset env for clean test
	ResetEnv()

	os.Setenv("GEMINI_API_KEY", "test-key")
	os.Setenv("FEDBOOK_KERNEL_URL", "http://kernel:9000")
	os.Setenv("FEDBOOK_REVIEW_TIMEOUT", "15s")
	os.Setenv("NEO4J_URI", "bolt://testhost:7687")
	defer func() {
		os.Unsetenv("GEMINI_API_KEY")
		os.Unsetenv("FEDBOOK_KERNEL_URL")
		os.Unsetenv("FEDBOOK_REVIEW_TIMEOUT")
		os.Unsetenv("NEO4J_URI")
		ResetEnv()
	}()

	env := Env()

	assert.Equal(t, "test-key", env.GeminiKey)
	assert.Equal(t, "http://kernel:9000", env.KernelURL)
	assert.Equal(t, 15*time.Second, env.ReviewTimeout)
	assert.Equal(t, "bolt://testhost:7687", env.Neo4jURI)
}

func TestEnvDefaults(t *testing.T) {
	ResetEnv()

	os.Unsetenv("GEMINI_MODEL")
	os.Unsetenv("FEDBOOK_KERNEL_URL")
	os.Unsetenv("NEO4J_URI")
	defer ResetEnv()

	env := Env()

	assert.Equal(t, "gemini-1.5-pro", env.GeminiModel)
	assert.Equal(t, "http://localhost:5001", env.KernelURL)
	assert.Equal(t, 60*time.Second, env.ReviewTimeout)
	assert.Equal(t, 120*time.Second, env.ExecTimeout)
	assert.Equal(t, "bolt://localhost:7687", env.Neo4jURI)
}

func TestEnvGoogleKeyFallback(t *testing.T) {
	ResetEnv()

	os.Unsetenv("GEMINI_API_KEY")
	os.Setenv("GOOGLE_API_KEY", "fallback-key")
	defer func() {
		os.Unsetenv("GOOGLE_API_KEY")
		ResetEnv()
	}()

	assert.Equal(t, "fallback-key", Env().GeminiKey)
}

func TestEnvSingleton(t *testing.T) {
	ResetEnv()
	defer ResetEnv()

	env1 := Env()
	env2 := Env()

	// Should return same instance
	assert.Same(t, env1, env2)
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name   string
		envVal string
		want   time.Duration
	}{
		{"valid duration", "45s", 45 * time.Second},
		{"invalid duration", "bogus", 10 * time.Second},
		{"empty", "", 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envVal != "" {
				os.Setenv("TEST_DURATION", tt.envVal)
				defer os.Unsetenv("TEST_DURATION")
			}
			got := getEnvDuration("TEST_DURATION", 10*time.Second)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetPaths(t *testing.T) {
	ResetPaths()
	os.Unsetenv("FEDBOOK_HOME")
	defer ResetPaths()

	paths := GetPaths()

	assert.NotEmpty(t, paths.Home)
	assert.Contains(t, paths.Home, ".fedbook")
	assert.Equal(t, filepath.Join(paths.Home, "data"), paths.Data)
	assert.Equal(t, filepath.Join(paths.Home, "notebooks"), paths.Notebooks)
	assert.Equal(t, filepath.Join(paths.Home, "audit"), paths.Audit)
}

func TestPath(t *testing.T) {
	ResetPaths()
	os.Unsetenv("FEDBOOK_HOME")
	defer ResetPaths()

	result := Path("subdir", "file.txt")

	assert.Contains(t, result, ".fedbook")
	assert.Contains(t, result, "subdir")
	assert.Contains(t, result, "file.txt")
}

func TestEnsureDir(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "fedbook-test-ensure")

	err := EnsureDir(tempDir)
	assert.NoError(t, err)

	info, err := os.Stat(tempDir)
	assert.NoError(t, err)
	assert.True(t, info.IsDir())

	// Running again should be idempotent
	err = EnsureDir(tempDir)
	assert.NoError(t, err)
}

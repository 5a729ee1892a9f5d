package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/hotcold/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Similarity struct {
		URL     string
		Timeout time.Duration
	}

	Modes []string
}

func (c *testConfig) Validate() error {
	if c.Similarity.URL == "" {
		return errors.New("similarity.url is required")
	}
	return nil
}

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
similarity:
  url: http://words.local
  timeout: 3s
modes: [classic, hardcore]
`), 0o600))

	t.Setenv("HTTP_PORT", "9090")

	var c testConfig
	c.HTTP.Port = 8080
	c.Similarity.Timeout = 5 * time.Second

	require.NoError(t, config.Load(p, &c))
	require.Equal(t, int32(9090), c.HTTP.Port)
	require.Equal(t, "http://words.local", c.Similarity.URL)
	require.Equal(t, 3*time.Second, c.Similarity.Timeout)
	require.Equal(t, []string{"classic", "hardcore"}, c.Modes)
}

func TestLoad_Validate(t *testing.T) {
	var c testConfig
	require.ErrorContains(t, config.Load("", &c), "similarity.url is required")
}

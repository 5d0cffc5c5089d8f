package internal

import (
	"os"
	"testing"
	"time"

	"github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	t.Setenv("JWT_SECRET", "secret")

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.NoError(err)
	req.NoError(config.Validate())
	req.Equal(8080, config.Port)
	req.Equal(30*time.Second, config.PingInterval)
	req.Equal("keep", config.ReplacePolicy)
	req.Equal("*", config.CharReplacement)
	req.Empty(config.CensoredWordList())
}

func TestConfig_Censored_Word_List(t *testing.T) {
	req := require.New(t)
	config := Config{CensoredWords: " badger, ,snake,"}

	req.Equal([]string{"badger", "snake"}, config.CensoredWordList())
}

func TestConfig_Missing_Secret(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", t.TempDir())
	// Restored by t.Setenv cleanup
	t.Setenv("JWT_SECRET", "")
	req.NoError(os.Unsetenv("JWT_SECRET"))

	var config Config
	_, err := env.UnmarshalFromEnviron(&config)

	req.Error(err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		ReplacePolicy:   "close",
		SendBufferSize:  8,
		PingInterval:    10 * time.Second,
		PongTimeout:     20 * time.Second,
		MetricInterval:  time.Minute,
		CharReplacement: "#",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown policy", func(c *Config) { c.ReplacePolicy = "evict" }, true},
		{"empty buffer", func(c *Config) { c.SendBufferSize = 0 }, true},
		{"pong before ping", func(c *Config) { c.PongTimeout = 5 * time.Second }, true},
		{"liveness disabled", func(c *Config) { c.PingInterval = 0; c.PongTimeout = 0 }, false},
		{"no metric interval", func(c *Config) { c.MetricInterval = 0 }, true},
		{"replacement is a word", func(c *Config) { c.CharReplacement = "**" }, true},
		{"replacement is a rune", func(c *Config) { c.CharReplacement = "€" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			config := valid
			tt.mutate(&config)

			err := config.Validate()

			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

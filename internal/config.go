package internal

import (
	"chat-relay/runtime"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	Host             string        `env:"HOST,default=0.0.0.0"`
	Port             int           `env:"PORT,default=8080"`
	HealthPort       int           `env:"HEALTH_PORT,default=8081"`
	DebugPort        int           `env:"DEBUG_PORT,default=8082"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath   string        `env:"BADGER_FILEPATH,required=true"`
	JWTSecret        string        `env:"JWT_SECRET,required=true"`
	SendBufferSize   int           `env:"SEND_BUFFER_SIZE,default=64"`
	WriteTimeout     time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval     time.Duration `env:"PING_INTERVAL,default=30s"`
	PongTimeout      time.Duration `env:"PONG_TIMEOUT,default=60s"`
	MaxFrameSize     int64         `env:"MAX_FRAME_SIZE,default=65536"`
	MaxContentLength int           `env:"MAX_CONTENT_LENGTH,default=4000"`
	StoreTimeout     time.Duration `env:"STORE_TIMEOUT,default=5s"`
	MetricInterval   time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval  time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ReplacePolicy    string        `env:"REPLACE_POLICY,default=keep"`
	// CensoredWords are added to the persisted blocklist at startup, comma separated
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Validate checks what the env tags cannot express.
func (c Config) Validate() error {
	switch runtime.ReplacePolicy(c.ReplacePolicy) {
	case runtime.ReplaceKeep, runtime.ReplaceClose:
	default:
		return fmt.Errorf("REPLACE_POLICY must be %q or %q, got %q", runtime.ReplaceKeep, runtime.ReplaceClose, c.ReplacePolicy)
	}
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize)
	}
	if c.PingInterval > 0 && c.PongTimeout > 0 && c.PongTimeout <= c.PingInterval {
		return fmt.Errorf("PONG_TIMEOUT (%s) must be longer than PING_INTERVAL (%s)", c.PongTimeout, c.PingInterval)
	}
	if c.MetricInterval <= 0 {
		return fmt.Errorf("METRIC_INTERVAL must be positive, got %s", c.MetricInterval)
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		return err
	}
	return nil
}

// CensoredWordList splits CENSORED_WORDS, dropping blanks.
func (c Config) CensoredWordList() []string {
	return lo.Compact(lo.Map(strings.Split(c.CensoredWords, ","), func(word string, _ int) string {
		return strings.TrimSpace(word)
	}))
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}

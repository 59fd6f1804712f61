package syncsched

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config carries the scheduling knobs that used to be hard-coded constants.
type Config struct {
	// IntervalMinutes is the periodic sync cadence. Must be a multiple of 30.
	IntervalMinutes int `validate:"gte=30,lte=1440"`
	// CooldownSeconds is the minimum gap between on-demand syncs of one source.
	CooldownSeconds int `validate:"gt=0"`
	// ScheduledSkipSeconds makes the periodic trigger skip itself when the
	// previous run is younger than this.
	ScheduledSkipSeconds int `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		IntervalMinutes:      intFromEnv("SYNC_INTERVAL_MINUTES", 60),
		CooldownSeconds:      intFromEnv("SYNC_COOLDOWN_SECONDS", 300),
		ScheduledSkipSeconds: intFromEnv("SYNC_SCHEDULED_SKIP_SECONDS", 1500),
	}
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.IntervalMinutes%30 != 0 {
		return fmt.Errorf("sync interval must be a multiple of 30 minutes, got %d", c.IntervalMinutes)
	}
	return nil
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

package syncsched

import (
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{IntervalMinutes: 60, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}, false},
		{"minimum", Config{IntervalMinutes: 30, CooldownSeconds: 1, ScheduledSkipSeconds: 1}, false},
		{"maximum", Config{IntervalMinutes: 1440, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}, false},
		{"below range", Config{IntervalMinutes: 15, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}, true},
		{"above range", Config{IntervalMinutes: 1470, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}, true},
		{"not multiple of 30", Config{IntervalMinutes: 45, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}, true},
		{"zero cooldown", Config{IntervalMinutes: 60, CooldownSeconds: 0, ScheduledSkipSeconds: 1500}, true},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestCooldownError_UnwrapsToSentinel(t *testing.T) {
	var err error = &CooldownError{RetryAfter: 42 * time.Second}
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("CooldownError must unwrap to ErrCooldownActive")
	}
	if err.Error() != "sync requested too soon, retry after 42 seconds" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

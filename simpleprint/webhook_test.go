package simpleprint

import "testing"

func TestMapEvent(t *testing.T) {
	cases := []struct {
		event string
		want  string
	}{
		{"job.started", EventJobStarted},
		{"print_started", EventJobStarted},
		{"job.done", EventJobCompleted},
		{"JOB.COMPLETED", EventJobCompleted},
		{"job.paused", EventJobPaused},
		{"job.resumed", EventJobResumed},
		{"print_failure", EventJobFailed},
		{"queue.changed", EventQueueChanged},
		{"printer.state_changed", EventPrinterState},
		{"ping", EventTest},
		{" test ", EventTest},
		{"whatever.else", EventUnknown},
		{"", EventUnknown},
	}
	for _, tc := range cases {
		if got := MapEvent(tc.event); got != tc.want {
			t.Errorf("MapEvent(%q) = %q, want %q", tc.event, got, tc.want)
		}
	}
}

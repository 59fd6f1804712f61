package simpleprint

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/printforge/printflow_backend/models"
)

func TestMapPrinterState(t *testing.T) {
	cases := []struct {
		remote string
		want   string
	}{
		{"printing", models.PrinterStatePrinting},
		{"Busy", models.PrinterStatePrinting},
		{"operational", models.PrinterStateIdle},
		{"IDLE", models.PrinterStateIdle},
		{"paused", models.PrinterStatePaused},
		{"error", models.PrinterStateError},
		{"offline", models.PrinterStateOffline},
		{"something-new", models.PrinterStateOffline},
		{"", models.PrinterStateOffline},
	}
	for _, tc := range cases {
		if got := mapPrinterState(tc.remote); got != tc.want {
			t.Errorf("mapPrinterState(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}

func TestDerivePrinterSnapshotPrinting(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	printer := RemotePrinter{
		Id:    "pr-1",
		Name:  "Voron",
		State: "printing",
		Job: &RemoteJob{
			Id:         "job-1",
			Percentage: json.Number("25"),
			Elapsed:    600,
		},
	}

	snap := derivePrinterSnapshot(printer, nil, now)
	if snap.State != models.PrinterStatePrinting {
		t.Fatalf("state = %q", snap.State)
	}
	if snap.JobStartTime == nil {
		t.Fatal("job start missing")
	}
	wantStart := now.Add(-600 * time.Second)
	if !snap.JobStartTime.Equal(wantStart) {
		t.Fatalf("job start = %v, want %v", snap.JobStartTime, wantStart)
	}
	// 600 s elapsed at 25% means 2400 s total.
	if snap.JobEndEstimate == nil {
		t.Fatal("job end estimate missing")
	}
	wantEnd := wantStart.Add(2400 * time.Second)
	if !snap.JobEndEstimate.Equal(wantEnd) {
		t.Fatalf("job end = %v, want %v", snap.JobEndEstimate, wantEnd)
	}
	if snap.IdleSince != nil {
		t.Fatal("printing snapshot must not carry idle_since")
	}
}

func TestDerivePrinterSnapshotPrintingNoPercentage(t *testing.T) {
	now := time.Now()
	printer := RemotePrinter{
		Id:    "pr-1",
		State: "printing",
		Job:   &RemoteJob{Percentage: json.Number("0"), Elapsed: 120},
	}
	snap := derivePrinterSnapshot(printer, nil, now)
	if snap.JobStartTime == nil {
		t.Fatal("job start missing")
	}
	if snap.JobEndEstimate != nil {
		t.Fatal("zero percentage must not yield an end estimate")
	}
}

func TestDerivePrinterSnapshotIdle(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	printer := RemotePrinter{Id: "pr-1", State: "idle"}

	// First observation ever: idle since now.
	snap := derivePrinterSnapshot(printer, nil, now)
	if snap.IdleSince == nil || !snap.IdleSince.Equal(now) {
		t.Fatalf("first idle snapshot idle_since = %v, want %v", snap.IdleSince, now)
	}

	// Previous snapshot was printing: idle since that observation.
	prevTime := now.Add(-10 * time.Minute)
	prev := &models.PrinterSnapshot{
		PrinterRemoteId: "pr-1",
		State:           models.PrinterStatePrinting,
		CreatedAt:       prevTime,
	}
	snap = derivePrinterSnapshot(printer, prev, now)
	if snap.IdleSince == nil || !snap.IdleSince.Equal(prevTime) {
		t.Fatalf("idle after printing idle_since = %v, want %v", snap.IdleSince, prevTime)
	}

	// Consecutive idle observations carry the original idle_since forward.
	idleSince := now.Add(-30 * time.Minute)
	prevIdle := &models.PrinterSnapshot{
		PrinterRemoteId: "pr-1",
		State:           models.PrinterStateIdle,
		IdleSince:       &idleSince,
		CreatedAt:       now.Add(-5 * time.Minute),
	}
	snap = derivePrinterSnapshot(printer, prevIdle, now)
	if snap.IdleSince == nil || !snap.IdleSince.Equal(idleSince) {
		t.Fatalf("consecutive idle idle_since = %v, want %v", snap.IdleSince, idleSince)
	}
}

func TestDerivePrinterSnapshotTemps(t *testing.T) {
	printer := RemotePrinter{
		Id:    "pr-1",
		State: "idle",
		Temps: &RemoteTemps{},
	}
	printer.Temps.Current.Nozzle = json.Number("215.5")
	printer.Temps.Current.Bed = json.Number("60")
	printer.Temps.Ambient = json.Number("")

	snap := derivePrinterSnapshot(printer, nil, time.Now())
	if snap.NozzleTemp == nil || snap.NozzleTemp.String() != "215.5" {
		t.Fatalf("nozzle temp = %v", snap.NozzleTemp)
	}
	if snap.BedTemp == nil || snap.BedTemp.String() != "60" {
		t.Fatalf("bed temp = %v", snap.BedTemp)
	}
	if snap.AmbientTemp != nil {
		t.Fatalf("empty ambient must stay nil, got %v", snap.AmbientTemp)
	}
}

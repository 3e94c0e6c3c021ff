package ui

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	buf := &bytes.Buffer{}
	SetOutput(buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuietMode(false)
	})
	return buf
}

func TestPrintFunctions(t *testing.T) {
	buf := capture(t)

	PrintInfo("Topics", "crypto, pets")
	PrintWarning("Checkpoint found", "use --resume")
	PrintError("Collection failed", "boom")
	PrintSuccess("done")

	want := []string{
		"Topics: crypto, pets",
		"Checkpoint found: use --resume",
		"Collection failed: boom",
		"done",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintLogo()
	PrintInfo("Plan", "4 windows")
	PrintError("No bearer token found")

	if got := strings.TrimSpace(buf.String()); got != "No bearer token found" {
		t.Errorf("expected only the error, got %q", got)
	}
}

func TestRunTracker(t *testing.T) {
	buf := capture(t)

	rt := NewRunTracker(9, 4)
	rt.StartGeneration(2)
	rt.CompleteRefresh()

	if got := rt.GetRefreshProgress(); got != "["+strings.Repeat(ProgressBar, 6)+strings.Repeat(ProgressEmpty, 18)+"] 1/4" {
		t.Errorf("unexpected progress %q", got)
	}

	rt.StartTime = time.Now().Add(-time.Minute)
	rt.PrintProgress()
	if !strings.Contains(buf.String(), "[GENERATION] 2/9") {
		t.Errorf("unexpected output %q", buf.String())
	}

	rt.StartGeneration(3)
	if rt.RefreshesDone != 0 {
		t.Error("StartGeneration must reset the refresh count")
	}
}

func TestRunTrackerWithoutRefreshes(t *testing.T) {
	rt := NewRunTracker(1, 0)
	if got := rt.GetRefreshProgress(); !strings.HasSuffix(got, "] 0/0") {
		t.Errorf("unexpected progress %q", got)
	}
}

package cmd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/overlay"
	"github.com/andresmejia3/emojicam/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// silenceStderr discards the error boxes printed by the code under test.
func silenceStderr(t *testing.T) {
	t.Helper()
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		w.Close()
		os.Stderr = oldStderr
		r.Close()
	})
}

func TestFmtTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{65, "00:01:05"},
		{3661, "01:01:01"},
	}

	for _, tt := range tests {
		if got := fmtTime(tt.seconds); got != tt.want {
			t.Errorf("fmtTime(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestValidateAnnotateFlags(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())
	tmpFile.Close()

	tmpDir := t.TempDir()

	valid := func() Options {
		return Options{
			InputPath:     tmpFile.Name(),
			NthFrame:      1,
			NumEngines:    1,
			Backend:       "fer",
			WorkerTimeout: "30s",
			JPEGQuality:   90,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"Valid options", func(o *Options) {}, false},
		{"Derived nth-frame", func(o *Options) { o.NthFrame = 0 }, false},
		{"Random backend", func(o *Options) { o.Backend = "random" }, false},
		{"Input file does not exist", func(o *Options) { o.InputPath = "nonexistent.mp4" }, true},
		{"Input is directory", func(o *Options) { o.InputPath = tmpDir }, true},
		{"Negative nth-frame", func(o *Options) { o.NthFrame = -2 }, true},
		{"Unknown backend", func(o *Options) { o.Backend = "mediapipe" }, true},
		{"JPEG quality too high", func(o *Options) { o.JPEGQuality = 101 }, true},
		{"JPEG quality zero", func(o *Options) { o.JPEGQuality = 0 }, true},
		{"Bad worker timeout", func(o *Options) { o.WorkerTimeout = "soon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			silenceStderr(t)
			opts := valid()
			tt.mutate(&opts)
			if err := validateAnnotateFlags(&opts); (err != nil) != tt.wantErr {
				t.Errorf("validateAnnotateFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAnnotateFlagsClampsEngines(t *testing.T) {
	silenceStderr(t)
	tmpFile := filepath.Join(t.TempDir(), "in.mp4")
	if err := os.WriteFile(tmpFile, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	opts := Options{InputPath: tmpFile, NumEngines: 0, Backend: "fer", WorkerTimeout: "1s", JPEGQuality: 50}
	if err := validateAnnotateFlags(&opts); err != nil {
		t.Fatalf("validateAnnotateFlags() error = %v", err)
	}
	if opts.NumEngines != 1 {
		t.Errorf("NumEngines = %d, want 1", opts.NumEngines)
	}
}

func TestNthFrameFor(t *testing.T) {
	tests := []struct {
		rate, fps float64
		want      int
	}{
		{0.1, 30, 3},
		{1, 25, 25},
		{0.01, 30, 1},
		{0, 30, 1},
		{0.5, 29.97, 15},
	}
	for _, tt := range tests {
		if got := nthFrameFor(tt.rate, tt.fps); got != tt.want {
			t.Errorf("nthFrameFor(%v, %v) = %d, want %d", tt.rate, tt.fps, got, tt.want)
		}
	}
}

func TestPollInterval(t *testing.T) {
	if got := pollInterval(0.25); got != 250*time.Millisecond {
		t.Errorf("pollInterval(0.25) = %v, want 250ms", got)
	}
}

func TestResolveDBURL(t *testing.T) {
	t.Run("Fallback", func(t *testing.T) {
		t.Setenv("POSTGRES_HOST", "")
		if got := resolveDBURL(); got != "postgres://localhost:5432/emojicam" {
			t.Errorf("resolveDBURL() = %q", got)
		}
	})
	t.Run("From environment", func(t *testing.T) {
		t.Setenv("POSTGRES_HOST", "db")
		t.Setenv("POSTGRES_USER", "cam")
		t.Setenv("POSTGRES_PASSWORD", "secret")
		t.Setenv("POSTGRES_DB", "emotions")
		t.Setenv("POSTGRES_PORT", "")
		want := "postgres://cam:secret@db:5432/emotions"
		if got := resolveDBURL(); got != want {
			t.Errorf("resolveDBURL() = %q, want %q", got, want)
		}
	})
}

func TestRedactURL(t *testing.T) {
	got := redactURL("postgres://cam:secret@db:5432/emotions")
	if strings.Contains(got, "secret") {
		t.Errorf("redactURL() leaked the password: %q", got)
	}
	if !strings.Contains(got, "cam:") || !strings.Contains(got, "db:5432") {
		t.Errorf("redactURL() = %q, want user and host kept", got)
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var prompt bytes.Buffer
		r := bufio.NewReader(strings.NewReader(tt.input))
		if got := confirm(r, &prompt, "Proceed?"); got != tt.want {
			t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(prompt.String(), "[y/N]") {
			t.Errorf("prompt = %q, want [y/N] suffix", prompt.String())
		}
	}
}

func TestLogFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emojicam.log")
	backup := filepath.Join(dir, "emojicam-2026-01-02T03-04-05.000.log")
	compressed := filepath.Join(dir, "emojicam-2026-01-03T03-04-05.000.log.gz")
	unrelated := []string{
		filepath.Join(dir, "other.log"),
		filepath.Join(dir, "emojicam-other.log"),
		filepath.Join(dir, "emojicam-2026-01-02.log"),
		filepath.Join(dir, "emojicam-2026-01-02T03-04-05.000.txt"),
	}
	for _, p := range append([]string{path, backup, compressed}, unrelated...) {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "emojicam-2026-01-04T03-04-05.000.log"), 0o755); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{path, backup, compressed}, logFiles(path)); diff != "" {
		t.Errorf("logFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestLogFilesMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone", "emojicam.log")
	if diff := cmp.Diff([]string{path}, logFiles(path)); diff != "" {
		t.Errorf("logFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintTallySummary(t *testing.T) {
	tally := overlay.NewTally(overlay.Emotions...)
	tally.Add("happy", 3)
	tally.Add("sad", 1)

	var buf bytes.Buffer
	printTallySummary(&buf, tally, 10, 7)
	out := buf.String()

	for _, want := range []string{"10 frame(s), 4 with a dominant emotion", "Session 7", "75.0%", "25.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "happy") > strings.Index(out, "sad") {
		t.Errorf("happy should be listed before sad:\n%s", out)
	}
}

func TestPrintTallySummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printTallySummary(&buf, overlay.NewTally(), -1, 0)
	if got := buf.String(); got != "No emotions recorded.\n" {
		t.Errorf("summary = %q", got)
	}
}

func TestPrintSessions(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	sessions := []store.Session{
		{ID: 2, Source: "/videos/talk.mp4", Backend: "deepface", StartedAt: start, EndedAt: &end, Events: 12, Dominant: "happy"},
		{ID: 1, Source: "webcam:0", Backend: "fer", StartedAt: start},
	}

	var buf bytes.Buffer
	printSessions(&buf, sessions)
	out := buf.String()

	for _, want := range []string{"talk.mp4", "00:01:30", "happy", "running", "webcam:0"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestRenderTallyChart(t *testing.T) {
	tally := overlay.NewTally(overlay.Emotions...)
	tally.Add("surprise", 2)

	img, err := renderTallyChart(tally)
	if err != nil {
		t.Fatalf("renderTallyChart() error = %v", err)
	}
	// The leader's bar starts at the margin and is painted in its palette colour.
	want := overlay.EmotionPalette.Color("surprise")
	got := img.RGBAAt(21, 21)
	if got != want {
		t.Errorf("leader bar pixel = %v, want %v", got, want)
	}

	out := filepath.Join(t.TempDir(), "chart.png")
	if err := saveTallyChart(out, tally); err != nil {
		t.Fatalf("saveTallyChart() error = %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("chart not written: %v", err)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("second write without force should fail")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("forced write error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got config.Overlay
	if err := json5.Unmarshal(data, &got); err != nil {
		t.Fatalf("written file does not parse: %v", err)
	}
	if diff := cmp.Diff(config.Defaults(), got); diff != "" {
		t.Errorf("written settings mismatch (-want +got):\n%s", diff)
	}
}

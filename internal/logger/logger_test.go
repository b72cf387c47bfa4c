package logger

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

func reset() {
	SetVerbose(false)
	SetTimestamps(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	if IsVerbose() {
		t.Error("expected verbose to be false initially")
	}

	SetVerbose(true)
	if !IsVerbose() {
		t.Error("expected verbose to be true after SetVerbose(true)")
	}
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	if buf.String() != "[DEBUG] test message arg\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Debug("test message")
	Info("info")
	Warn("warn")

	if buf.Len() > 0 {
		t.Errorf("expected no output when verbose is disabled, got %q", buf.String())
	}
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Batch 1/3")

	if buf.String() != "\n=== Batch 1/3 ===\n" {
		t.Errorf("unexpected section output: %q", buf.String())
	}
}

func TestInfoAndWarn(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Info("stored %d chunks", 42)
	Warn("render fallback")

	if buf.String() != "[INFO] stored 42 chunks\n[WARN] render fallback\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestError_AlwaysPrinted(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	Error("store unreachable: %s", "dial tcp")

	if buf.String() != "[ERROR] store unreachable: dial tcp\n" {
		t.Errorf("unexpected error output: %q", buf.String())
	}
}

func TestScoped(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	l := For("openai/gpt_4_chunks")
	l.Debug("state %s", "extracting")
	l.Error("failed")

	want := "[DEBUG] [openai/gpt_4_chunks] state extracting\n[ERROR] [openai/gpt_4_chunks] failed\n"
	if buf.String() != want {
		t.Errorf("unexpected scoped output: %q", buf.String())
	}
}

func TestTimestamps(t *testing.T) {
	defer func() {
		reset()
		now = time.Now
	}()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetTimestamps(true)
	now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	Error("x")

	if buf.String() != "2024-05-01T12:00:00Z [ERROR] x\n" {
		t.Errorf("unexpected timestamped output: %q", buf.String())
	}
}

func TestConcurrentAccess(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			For("src").Info("concurrent %d", i)
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "\n"); got != 10 {
		t.Errorf("expected 10 lines, got %d", got)
	}
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWithRunLoggerTagsEveryRecord(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if id == "" {
		t.Fatalf("WithRunLogger did not attach a run id")
	}
	log.Info(ctx, "tick", Uint64("n", 3), Float("energy", 1.5), Duration("took", 2500*time.Microsecond), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["run_id"] != id {
		t.Fatalf("run_id = %v, want %s", rec["run_id"], id)
	}
	if rec["msg"] != "tick" || rec["n"] != float64(3) || rec["energy"] != 1.5 || rec["took"] != 2.5 || rec["error"] != "boom" {
		t.Fatalf("record = %v", rec)
	}
}

func TestEnsureRunIDKeepsExisting(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "fixed")
	ctx, id := EnsureRunID(ctx)
	if id != "fixed" || RunIDFromContext(ctx) != "fixed" {
		t.Fatalf("EnsureRunID replaced an existing id: %s", id)
	}

	_, a := EnsureRunID(context.Background())
	_, b := EnsureRunID(context.Background())
	if a == "" || a == b {
		t.Fatalf("fresh run ids = %q, %q, want distinct non-empty ids", a, b)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "WARNING", Format: "text", Output: &buf})
	ctx := context.Background()

	log.Info(ctx, "hidden")
	log.Warn(ctx, "shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("warn-level output = %q", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("empty context returned a logger")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("ContextWithLogger(nil) should store a noop logger")
	}
	if Err(nil).Value != nil {
		t.Fatalf("Err(nil) should carry no value")
	}
}

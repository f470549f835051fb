package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNew_WritesDailyJSONFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(dir, "debug", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	log.Debugw("probe", "kind", "post")
	_ = log.Sync()

	path := filepath.Join(dir, time.Now().Format("2006-01-02")+".log")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"probe"`) || !strings.Contains(string(raw), `"kind":"post"`) {
		t.Fatalf("log file missing entry:\n%s", raw)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New(t.TempDir(), "loud", false); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != zap.S() {
		t.Fatalf("empty context should yield the global logger")
	}
	l := zap.NewNop().Sugar().With("req", "abc")
	if FromContext(WithContext(context.Background(), l)) != l {
		t.Fatalf("stored logger not returned")
	}
}

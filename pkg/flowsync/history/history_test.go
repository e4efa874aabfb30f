package history

import (
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLog_RecordGet(t *testing.T) {
	t.Parallel()

	l := openTestLog(t)
	entry := Entry{
		RequestID:    "req-1",
		Timestamp:    time.Now().UTC().Truncate(time.Second),
		Branch:       "main",
		ChangedFiles: 3,
		Warnings:     1,
	}

	if err := l.Record(entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := l.Get("req-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Branch != "main" || got.ChangedFiles != 3 || got.Warnings != 1 {
		t.Errorf("Get() = %+v", got)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}

	if _, err := l.Get("missing"); err == nil {
		t.Error("Get(missing) error = nil, want error")
	}
}

func TestLog_MarkCommitted(t *testing.T) {
	t.Parallel()

	l := openTestLog(t)
	if err := l.Record(Entry{RequestID: "req-1", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if err := l.MarkCommitted("req-1"); err != nil {
		t.Fatalf("MarkCommitted() error = %v", err)
	}
	got, err := l.Get("req-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Committed {
		t.Error("Committed = false after MarkCommitted")
	}

	if err := l.MarkCommitted("missing"); err == nil {
		t.Error("MarkCommitted(missing) error = nil, want error")
	}
}

func TestLog_List(t *testing.T) {
	t.Parallel()

	l := openTestLog(t)
	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		entry := Entry{RequestID: id, Timestamp: base.Add(time.Duration(i) * time.Hour)}
		if err := l.Record(entry); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	entries, err := l.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() len = %d, want 3", len(entries))
	}
	if entries[0].RequestID != "new" || entries[2].RequestID != "old" {
		t.Errorf("List() order = %v, want newest first", ids(entries))
	}

	limited, err := l.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 || limited[0].RequestID != "new" {
		t.Errorf("List(2) = %v", ids(limited))
	}
}

func TestLog_Cleanup(t *testing.T) {
	t.Parallel()

	l := openTestLog(t)
	now := time.Now().UTC()
	if err := l.Record(Entry{RequestID: "stale", Timestamp: now.AddDate(0, 0, -100)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := l.Record(Entry{RequestID: "fresh", Timestamp: now}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if err := l.Cleanup(90); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	entries, err := l.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].RequestID != "fresh" {
		t.Errorf("entries after cleanup = %v, want only fresh", ids(entries))
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RequestID
	}
	return out
}

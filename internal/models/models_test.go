package models

import (
	"testing"
)

// TestJobStatusTransitions walks every pair of statuses against the
// QUEUED → RUNNING → {SUCCESS, FAILED} graph.
func TestJobStatusTransitions(t *testing.T) {
	all := []JobStatus{JobQueued, JobRunning, JobSuccess, JobFailed}
	allowed := map[JobStatus]map[JobStatus]bool{
		JobQueued:  {JobRunning: true},
		JobRunning: {JobSuccess: true, JobFailed: true},
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				got := from.CanTransitionTo(to)
				if got != allowed[from][to] {
					t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", from, to, got, allowed[from][to])
				}
			})
		}
	}

	if !JobSuccess.IsTerminal() || !JobFailed.IsTerminal() {
		t.Error("SUCCESS and FAILED must be terminal")
	}
	if JobQueued.IsTerminal() || JobRunning.IsTerminal() {
		t.Error("QUEUED and RUNNING must not be terminal")
	}
	if JobStatus("DONE").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestExtractedFieldsApply(t *testing.T) {
	d := &Document{Title: "old", IsProcessed: false}
	ExtractedFields{Title: "Invoice one", Author: "Alice", PageCount: 0, MD5: "abc"}.Apply(d)

	if d.Title != "Invoice one" || d.Author != "Alice" || d.MD5 != "abc" {
		t.Errorf("fields not applied: %+v", d)
	}
	if d.PageCount == nil || *d.PageCount != 0 {
		t.Errorf("PageCount = %v, want pointer to 0", d.PageCount)
	}
	if !d.IsProcessed {
		t.Error("IsProcessed should be true after Apply")
	}
}

func TestJSONColumnsScanBothDriverShapes(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
	}{
		{name: "postgres bytes", src: []byte(`{"async":true,"job_id":"j1"}`)},
		{name: "sqlite text", src: `{"async":true,"job_id":"j1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m JSONMap
			if err := m.Scan(tt.src); err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if m["job_id"] != "j1" || m["async"] != true {
				t.Errorf("unexpected map %v", m)
			}
		})
	}

	var l StringList
	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if l == nil || len(l) != 0 {
		t.Errorf("nil column should scan to empty list, got %#v", l)
	}

	if err := l.Scan(42); err == nil {
		t.Error("expected error scanning an int into StringList")
	}
}

func TestWebhookSubscribes(t *testing.T) {
	w := Webhook{Events: StringList{EventExtractionFailed}}
	if !w.Subscribes(EventExtractionFailed) {
		t.Error("expected subscription to extraction.failed")
	}
	if w.Subscribes(EventExtractionSucceeded) {
		t.Error("unexpected subscription to extraction.succeeded")
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage[Tag](nil, 2, 20, 41)
	if p.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
	if p.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", p.TotalPages)
	}
}

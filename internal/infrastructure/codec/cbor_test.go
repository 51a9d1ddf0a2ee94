package codec

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"webcam-motion/internal/domain"
)

func sampleEvents() []domain.DetectionEvent {
	base := time.Date(2026, 3, 4, 5, 6, 7, 123456789, time.UTC)
	return []domain.DetectionEvent{
		{ID: "a", Time: base, Centroid: domain.Point{X: 59.5, Y: 59.5}, Pixels: 400},
		{ID: "b", Time: base.Add(33 * time.Millisecond), Centroid: domain.Point{X: 10, Y: 2.25}, Pixels: 301},
	}
}

func sameEvent(a, b domain.DetectionEvent) bool {
	return a.ID == b.ID && a.Time.Equal(b.Time) && a.Centroid == b.Centroid && a.Pixels == b.Pixels
}

func TestMarshalKeepsSubsecondTime(t *testing.T) {
	event := sampleEvents()[0]
	data, err := Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !sameEvent(event, got) {
		t.Fatalf("expected %+v, got %+v", event, got)
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLogSequence(t *testing.T) {
	var buf bytes.Buffer
	w := NewLogWriter(&buf)
	for _, e := range sampleEvents() {
		if err := w.Write(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if w.Count() != 2 {
		t.Fatalf("expected count 2, got %d", w.Count())
	}

	got, err := ReadLog(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := sampleEvents()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if !sameEvent(want[i], got[i]) {
			t.Fatalf("event %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestReadLogTruncated(t *testing.T) {
	data, err := Marshal(sampleEvents()[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	truncated := append(append([]byte{}, data...), data[:len(data)/2]...)

	got, err := ReadLog(bytes.NewReader(truncated))
	if err == nil {
		t.Fatal("expected error for truncated log")
	}
	if len(got) != 1 {
		t.Fatalf("expected the complete event to be returned, got %d", len(got))
	}
}

func TestLogFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detections.cbor")
	if err := WriteLogFile(path, sampleEvents()[:1]); err != nil {
		t.Fatalf("write file: %v", err)
	}

	w, err := CreateLog(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.Write(sampleEvents()[1]); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadLogFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("unexpected log %+v", got)
	}
}

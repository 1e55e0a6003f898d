package service

import (
	"regexp"
	"testing"
)

var trackingIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,50}$`)

func TestTrackingIDGeneratorUnique(t *testing.T) {
	generator, err := NewTrackingIDGenerator(7)
	if err != nil {
		t.Fatalf("new generator failed: %v", err)
	}
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := generator.Generate()
		if err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !trackingIDPattern.MatchString(id) {
			t.Fatalf("tracking id %q is not url safe or has bad length", id)
		}
		if _, ok := seen[id]; ok {
			t.Fatalf("duplicate tracking id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestTrackingIDGeneratorRejectsBadNode(t *testing.T) {
	if _, err := NewTrackingIDGenerator(4096); err == nil {
		t.Fatalf("expected error for out of range node id")
	}
}

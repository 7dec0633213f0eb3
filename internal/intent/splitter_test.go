package intent

import (
	"strings"
	"testing"
)

func TestSplitSingleIntent(t *testing.T) {
	s := NewSplitter()

	segments := s.Split("Add a new lead John Smith from Delhi phone 9876543210")

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %v", len(segments), segments)
	}
}

func TestSplitTwoIntents(t *testing.T) {
	s := NewSplitter()
	transcript := "create a lead for Mike Davis in Chicago phone 5551234567 from our website and then schedule a visit for lead abc-456 next Friday at 10 AM"

	segments := s.Split(transcript)

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %v", len(segments), segments)
	}
	if !strings.Contains(segments[0], "Mike Davis") {
		t.Errorf("first segment should carry the lead create text, got %q", segments[0])
	}
	if !strings.Contains(segments[1], "abc-456") {
		t.Errorf("second segment should carry the visit text, got %q", segments[1])
	}
}

func TestSplitSupportedConnectives(t *testing.T) {
	s := NewSplitter()

	for _, conn := range []string{"and then", "and also", "after that"} {
		transcript := "add a new lead John Smith from Delhi phone 9876543210 " + conn + " update lead abc-123 status to WON"
		segments := s.Split(transcript)
		if len(segments) != 2 {
			t.Errorf("%q: expected 2 segments, got %d: %v", conn, len(segments), segments)
		}
	}
}

func TestSplitConnectiveWithoutIntentsDoesNotSplit(t *testing.T) {
	s := NewSplitter()

	// Right side carries no intent keyword, so the connective is content.
	segments := s.Split("add a new lead John Smith and then some more details")

	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d: %v", len(segments), segments)
	}
}

func TestSplitThreeIntents(t *testing.T) {
	s := NewSplitter()
	transcript := "add a new lead John Smith from Delhi phone 9876543210 and then schedule a visit for lead abc-1 tomorrow at 3 PM and also update lead abc-2 status to LOST"

	segments := s.Split(transcript)

	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d: %v", len(segments), segments)
	}
}

func TestSplitPreservesEntityText(t *testing.T) {
	s := NewSplitter()
	transcript := "create a lead for Mike Davis in Chicago phone 5551234567 and then schedule a visit for lead abc-456 next Friday at 10 AM"

	segments := s.Split(transcript)

	// No entity-bearing text may be dropped: every segment must be a
	// contiguous substring of the original.
	for _, seg := range segments {
		if !strings.Contains(transcript, seg) {
			t.Errorf("segment %q is not a substring of the transcript", seg)
		}
	}
}

func TestSplitNonASCIIUppercaseKeepsOffsets(t *testing.T) {
	s := NewSplitter()
	// U+0130 grows by a byte under Unicode case folding, which would
	// shift connective offsets and corrupt the split boundaries.
	transcript := "add a new lead İlkay Demir from İstanbul phone 9876543210 and then update lead abc-123 status to WON"

	segments := s.Split(transcript)

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %v", len(segments), segments)
	}
	if !strings.Contains(segments[0], "İstanbul") {
		t.Errorf("first segment should carry the city intact, got %q", segments[0])
	}
	if segments[1] != "update lead abc-123 status to WON" {
		t.Errorf("unexpected second segment %q", segments[1])
	}
	for _, seg := range segments {
		if !strings.Contains(transcript, seg) {
			t.Errorf("segment %q is not a substring of the transcript", seg)
		}
	}
}

func TestSplitIsRestartable(t *testing.T) {
	s := NewSplitter()
	transcript := "add a new lead John Smith and then update lead abc-123 status to WON"

	first := s.Split(transcript)
	second := s.Split(transcript)

	if len(first) != len(second) {
		t.Fatalf("expected identical splits, got %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("expected identical splits, got %v vs %v", first, second)
		}
	}
}

package domain

import (
	"math"
	"testing"
)

func TestDocumentStatusCanTransition(t *testing.T) {
	tests := []struct {
		from DocumentStatus
		to   DocumentStatus
		want bool
	}{
		{StatusReceived, StatusProcessing, true},
		{StatusReceived, StatusFailed, true},
		{StatusReceived, StatusDone, false},
		{StatusProcessing, StatusDone, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusReceived, false},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusDone, false},
		{StatusFailed, StatusReceived, false},
		{StatusDone, StatusProcessing, false},
		{StatusDone, StatusFailed, false},
		{StatusDone, StatusReceived, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDocumentStatusIsTerminal(t *testing.T) {
	if StatusReceived.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("RECEIVED and PROCESSING are not terminal")
	}
	if !StatusDone.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("DONE and FAILED are terminal")
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{87.5, 0.875}, // percentage scale
		{100, 1},
		{150, 1},  // clamped after rescale
		{-0.2, 0}, // clamped
	}

	for _, tt := range tests {
		if got := NormalizeConfidence(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("NormalizeConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBoundingBoxValid(t *testing.T) {
	b := BoundingBox{X: 10, Y: 10, W: 50, H: 20}
	if !b.Valid(100, 100) {
		t.Error("box inside page should be valid")
	}
	if b.Valid(50, 100) {
		t.Error("box extending past page width should be invalid")
	}
	if (BoundingBox{X: -1, Y: 0, W: 10, H: 10}).Valid(100, 100) {
		t.Error("negative origin should be invalid")
	}
}

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, W: 10, H: 10}
	b := BoundingBox{X: 20, Y: 5, W: 10, H: 10}

	u := a.Union(b)
	want := BoundingBox{X: 0, Y: 0, W: 30, H: 15}
	if u != want {
		t.Errorf("Union = %+v, want %+v", u, want)
	}
}

func TestBoundingBoxIoU(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, W: 10, H: 10}

	if got := a.IoU(a); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical boxes IoU = %v, want 1", got)
	}

	disjoint := BoundingBox{X: 100, Y: 100, W: 10, H: 10}
	if got := a.IoU(disjoint); got != 0 {
		t.Errorf("disjoint boxes IoU = %v, want 0", got)
	}

	// Half overlap: 5x10 intersection over 150 union.
	half := BoundingBox{X: 5, Y: 0, W: 10, H: 10}
	if got := a.IoU(half); math.Abs(got-50.0/150.0) > 1e-9 {
		t.Errorf("half overlap IoU = %v, want %v", got, 50.0/150.0)
	}
}

func TestSortSpans(t *testing.T) {
	spans := []TextSpan{
		{Text: "c", Page: 1, BBox: BoundingBox{X: 5, Y: 50}},
		{Text: "d", Page: 2, BBox: BoundingBox{X: 0, Y: 0}},
		{Text: "b", Page: 1, BBox: BoundingBox{X: 80, Y: 10}},
		{Text: "a", Page: 1, BBox: BoundingBox{X: 5, Y: 10}},
	}

	SortSpans(spans)

	got := ""
	for _, s := range spans {
		got += s.Text
	}
	if got != "abcd" {
		t.Errorf("reading order = %q, want abcd", got)
	}
}

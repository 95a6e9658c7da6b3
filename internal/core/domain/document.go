package domain

import "time"

// DocumentStatus represents the lifecycle state of an ingested document.
type DocumentStatus string

const (
	StatusReceived   DocumentStatus = "RECEIVED"
	StatusProcessing DocumentStatus = "PROCESSING"
	StatusDone       DocumentStatus = "DONE"
	StatusFailed     DocumentStatus = "FAILED"
)

// IsTerminal reports whether no further transitions are allowed for the
// current processing attempt.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether a status change is legal. Terminal states
// never regress within an attempt; a fresh job restarts a FAILED document by
// moving it back to PROCESSING.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	switch s {
	case StatusReceived:
		return to == StatusProcessing || to == StatusFailed
	case StatusProcessing:
		return to == StatusDone || to == StatusFailed
	case StatusFailed:
		return to == StatusProcessing
	case StatusDone:
		return false
	}
	return false
}

// Document represents one ingested scanned report and its processing state.
// The content hash is immutable once set; pages is set when rasterization
// succeeds and never decreases.
type Document struct {
	ID             string         `json:"id"`
	Tenant         string         `json:"tenant"`
	ObjectKey      string         `json:"object_key"`
	Status         DocumentStatus `json:"status"`
	Pages          int            `json:"pages"`
	SHA256         string         `json:"sha256"`
	ModelVersion   string         `json:"model_version,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	ProcessingTime *float64       `json:"processing_time_seconds,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// BoundingBox locates a value on a rasterized page. Coordinates are pixels
// with the origin in the upper-left corner.
type BoundingBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Valid reports whether the box lies within a page of the given dimensions.
func (b BoundingBox) Valid(pageW, pageH float64) bool {
	return b.X >= 0 && b.Y >= 0 && b.W >= 0 && b.H >= 0 &&
		b.X+b.W <= pageW && b.Y+b.H <= pageH
}

// Union returns the smallest box covering both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	x := min(b.X, other.X)
	y := min(b.Y, other.Y)
	x2 := max(b.X+b.W, other.X+other.W)
	y2 := max(b.Y+b.H, other.Y+other.H)
	return BoundingBox{X: x, Y: y, W: x2 - x, H: y2 - y}
}

// IoU returns the intersection-over-union overlap ratio of two boxes.
func (b BoundingBox) IoU(other BoundingBox) float64 {
	ix := max(b.X, other.X)
	iy := max(b.Y, other.Y)
	ix2 := min(b.X+b.W, other.X+other.W)
	iy2 := min(b.Y+b.H, other.Y+other.H)
	if ix2 <= ix || iy2 <= iy {
		return 0
	}
	inter := (ix2 - ix) * (iy2 - iy)
	union := b.W*b.H + other.W*other.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// FieldRecord is one extracted, positioned, confidence-scored value for a
// named field. A document owns zero or more records; reprocessing replaces
// the whole set.
type FieldRecord struct {
	ID         string       `json:"id"`
	DocumentID string       `json:"document_id"`
	FieldName  string       `json:"field_name"`
	FieldValue *string      `json:"field_value,omitempty"`
	Confidence *float64     `json:"confidence,omitempty"`
	Page       *int         `json:"page,omitempty"`
	BBox       *BoundingBox `json:"bbox,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NormalizeConfidence canonicalizes a raw engine score to [0,1]. Engines
// reporting percentages (0-100) are rescaled; out-of-range values are
// clamped. Enforced once, at write time, so stored data is always canonical.
func NormalizeConfidence(v float64) float64 {
	if v > 1 {
		v = v / 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ProcessOutcome is what one processing run commits for a document: the
// terminal status plus everything learned along the way.
type ProcessOutcome struct {
	Status         DocumentStatus
	Pages          int
	ErrorMessage   string
	ModelVersion   string
	ProcessingTime float64
	Fields         []FieldRecord
}

package recognize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

func TestHandwritingDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognize" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(handwritingResponse{
			Success: true,
			Spans: []handwritingSpan{
				{Text: "Maria Silva", Confidence: 87.5, BBox: []float64{120, 300, 200, 28}},
				{Text: "", Confidence: 10, BBox: []float64{0, 0, 1, 1}}, // dropped
			},
		})
	}))
	defer srv.Close()

	e := NewHandwritingEngine(srv.URL)
	spans, err := e.Detect(context.Background(), testPage())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Text != "Maria Silva" {
		t.Errorf("text = %q", s.Text)
	}
	if s.Confidence != 0.875 {
		t.Errorf("confidence %v not rescaled to 0.875", s.Confidence)
	}
	if s.Modality != domain.ModalityHandwritten {
		t.Errorf("modality = %q", s.Modality)
	}
	if s.Page != 1 {
		t.Errorf("page = %d", s.Page)
	}
}

func TestHandwritingDetectServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewHandwritingEngine(srv.URL)
	_, err := e.Detect(context.Background(), testPage())
	if !errors.Is(err, domain.ErrRecognition) {
		t.Errorf("expected ErrRecognition, got %v", err)
	}
}

func TestHandwritingDetectFailureFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(handwritingResponse{Success: false, Error: "gpu oom"})
	}))
	defer srv.Close()

	e := NewHandwritingEngine(srv.URL)
	_, err := e.Detect(context.Background(), testPage())
	if !errors.Is(err, domain.ErrRecognition) {
		t.Errorf("expected ErrRecognition, got %v", err)
	}
}

func TestHandwritingBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHandwritingEngine(srv.URL)
	for i := 0; i < 5; i++ {
		if _, err := e.Detect(context.Background(), testPage()); err == nil {
			t.Fatal("expected failure")
		}
	}
	// Breaker is now open; the request must not reach the server.
	srv.Close()
	_, err := e.Detect(context.Background(), testPage())
	if !errors.Is(err, domain.ErrRecognition) {
		t.Errorf("expected ErrRecognition from open breaker, got %v", err)
	}
}

func TestHandwritingIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := NewHandwritingEngine(srv.URL)
	healthy, err := e.IsHealthy(context.Background())
	if err != nil || !healthy {
		t.Errorf("healthy = %v, err = %v", healthy, err)
	}
}

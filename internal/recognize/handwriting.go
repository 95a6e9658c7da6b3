package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/custodia-labs/docfield-core/internal/core/domain"
)

// HandwritingEngine recognizes handwritten text by calling the TrOCR
// inference service over HTTP. A circuit breaker keeps a dead service from
// stalling every page of every document.
type HandwritingEngine struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// handwritingResponse is the TrOCR service wire format.
type handwritingResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Spans   []handwritingSpan `json:"spans"`
}

type handwritingSpan struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x, y, w, h] in page pixels
}

// NewHandwritingEngine creates a client for the handwriting service at
// baseURL.
func NewHandwritingEngine(baseURL string) *HandwritingEngine {
	return &HandwritingEngine{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "handwriting-ocr",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (e *HandwritingEngine) Name() string { return "trocr" }

// IsHealthy checks the service health endpoint.
func (e *HandwritingEngine) IsHealthy(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}

// Detect sends the page image to the service and converts the response to
// text spans.
func (e *HandwritingEngine) Detect(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error) {
	out, err := e.breaker.Execute(func() (interface{}, error) {
		return e.recognize(ctx, page)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: handwriting service unavailable: %v", domain.ErrRecognition, err)
		}
		return nil, err
	}
	return out.([]domain.TextSpan), nil
}

func (e *HandwritingEngine) recognize(ctx context.Context, page domain.PageImage) ([]domain.TextSpan, error) {
	var imgBuf bytes.Buffer
	if err := png.Encode(&imgBuf, page.Image); err != nil {
		return nil, fmt.Errorf("%w: encoding page %d: %v", domain.ErrRecognition, page.Number, err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fw, err := writer.CreateFormFile("file", fmt.Sprintf("page-%d.png", page.Number))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecognition, err)
	}
	if _, err := io.Copy(fw, &imgBuf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecognition, err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/recognize", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRecognition, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: handwriting request: %v", domain.ErrRecognition, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: handwriting service returned %d: %s", domain.ErrRecognition, resp.StatusCode, msg)
	}

	var hr handwritingResponse
	if err := json.NewDecoder(resp.Body).Decode(&hr); err != nil {
		return nil, fmt.Errorf("%w: decoding handwriting response: %v", domain.ErrRecognition, err)
	}
	if !hr.Success {
		return nil, fmt.Errorf("%w: handwriting service: %s", domain.ErrRecognition, hr.Error)
	}

	spans := make([]domain.TextSpan, 0, len(hr.Spans))
	for _, s := range hr.Spans {
		if s.Text == "" || len(s.BBox) != 4 {
			continue
		}
		spans = append(spans, domain.TextSpan{
			Text:       s.Text,
			Confidence: domain.NormalizeConfidence(s.Confidence),
			Page:       page.Number,
			BBox: domain.BoundingBox{
				X: s.BBox[0], Y: s.BBox[1], W: s.BBox[2], H: s.BBox[3],
			},
			Modality: domain.ModalityHandwritten,
		})
	}
	return spans, nil
}

package thermal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// PersonClass is the class id of "person" in COCO-trained detectors.
const PersonClass = 0

// maxResponseBytes caps how much of a detector response is read.
const maxResponseBytes = 1 << 20

// HTTPDetector posts PNG frames to an object-detection endpoint.
//
// The endpoint answers with
//
//	{"detections": [{"class_id": 0, "label": "person", "confidence": 0.87}]}
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDetector returns a detector for endpoint. Requests are traced and
// bounded by timeout.
func NewHTTPDetector(endpoint string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type detection struct {
	ClassID    *int    `json:"class_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Detections []detection `json:"detections"`
}

// Detect implements Detector.
func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) (float64, error) {
	var body bytes.Buffer
	if err := png.Encode(&body, frame); err != nil {
		return 0, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, &body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("detector request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("read detector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: status %d: %s", ErrDetector, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var dr detectResponse
	if err := json.Unmarshal(raw, &dr); err != nil {
		return 0, fmt.Errorf("%w: decode response: %w", ErrDetector, err)
	}

	var best float64
	for _, det := range dr.Detections {
		if !isPerson(det) {
			continue
		}
		if det.Confidence > best {
			best = det.Confidence
		}
	}
	return best, nil
}

func isPerson(d detection) bool {
	if d.ClassID != nil {
		return *d.ClassID == PersonClass
	}
	return strings.EqualFold(d.Label, "person")
}

// Package thermal scores thermal camera frames for human presence.
package thermal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/trackwatch/internal/consensus"
	"github.com/linnemanlabs/trackwatch/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/trackwatch/internal/scoring/thermal")

// Reading details.
const (
	DetailsHuman   = "Human Heat Signature Detected (37°C)"
	DetailsAmbient = "Ambient environment only. No life detected."
)

// Detector returns the highest "person" detection confidence in a frame,
// or 0 when no person is found.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) (float64, error)
}

// DefaultMaxPixels caps decoded frame size (width*height) unless overridden
// with WithMaxPixels.
const DefaultMaxPixels = 25_000_000

// Analyzer implements scoring.Analyzer for still images.
type Analyzer struct {
	detector  Detector
	logger    log.Logger
	maxPixels int
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMaxPixels rejects frames whose width*height exceeds n. Values <= 0
// keep DefaultMaxPixels.
func WithMaxPixels(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.maxPixels = n
		}
	}
}

// New returns a thermal analyzer. A nil detector leaves the analyzer in
// degraded mode: frames are still validated but always read LOW.
func New(detector Detector, logger log.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = log.Nop()
	}
	a := &Analyzer{detector: detector, logger: logger, maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze decodes an image, renders its thermal view, and classifies it.
func (a *Analyzer) Analyze(ctx context.Context, media []byte) (consensus.Reading, error) {
	ctx, span := tracer.Start(ctx, "thermal.Analyze", trace.WithAttributes(
		attribute.Int("media.bytes", len(media)),
	))
	defer span.End()

	// Header first: a small compressed file can declare a huge canvas.
	hdr, _, err := image.DecodeConfig(bytes.NewReader(media))
	if err != nil {
		err = fmt.Errorf("%w: invalid image: %w", incident.ErrValidation, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return consensus.Reading{}, err
	}
	if !withinPixels(hdr.Width, hdr.Height, a.maxPixels) {
		err = fmt.Errorf("%w: image %dx%d exceeds %d pixels",
			incident.ErrValidation, hdr.Width, hdr.Height, a.maxPixels)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return consensus.Reading{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(media))
	if err != nil {
		err = fmt.Errorf("%w: invalid image: %w", incident.ErrValidation, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return consensus.Reading{}, err
	}
	b := img.Bounds()
	span.SetAttributes(
		attribute.String("image.format", format),
		attribute.Int("image.width", b.Dx()),
		attribute.Int("image.height", b.Dy()),
	)

	if a.detector == nil {
		span.SetAttributes(attribute.Bool("reading.degraded", true))
		return degraded(), nil
	}

	conf, err := a.detector.Detect(ctx, Colorize(img))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return consensus.Reading{}, ctxErr
		}
		span.RecordError(err)
		a.logger.Warn(ctx, "thermal detector failed, reading degraded", "error", err)
		return degraded(), nil
	}

	r := Classify(conf)
	span.SetAttributes(
		attribute.Float64("thermal.person_confidence", conf),
		attribute.String("reading.level", string(r.Level)),
	)
	return r, nil
}

// Classify maps the best person confidence to a reading.
func Classify(personConf float64) consensus.Reading {
	if personConf > consensus.ThermalPersonThreshold {
		return consensus.Reading{
			Level:      consensus.LevelHigh,
			Details:    DetailsHuman,
			Confidence: personConf,
		}
	}
	return consensus.Reading{
		Level:      consensus.LevelLow,
		Details:    DetailsAmbient,
		Confidence: 0,
	}
}

func withinPixels(w, h, limit int) bool {
	if w <= 0 || h <= 0 {
		return w >= 0 && h >= 0
	}
	return w <= limit/h
}

func degraded() consensus.Reading {
	r := Classify(0)
	r.Degraded = true
	return r
}

// ErrDetector is returned by detectors for non-success responses.
var ErrDetector = errors.New("thermal detector error")

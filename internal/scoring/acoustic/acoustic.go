// Package acoustic scores vibration audio captured by trackside fibre nodes.
//
// A WAV clip is downmixed to mono and decomposed with a four-level
// Daubechies-4 wavelet transform. Sawing and hammering on the rail put energy
// into the two finest detail bands while passing trains and background
// rumble stay in the coarse approximation band; the ratio of the two decides
// the reading.
package acoustic

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/go-audio/wav"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/trackwatch/internal/consensus"
	"github.com/linnemanlabs/trackwatch/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/trackwatch/internal/scoring/acoustic")

// Levels is the decomposition depth.
const Levels = 4

// Reading details.
const (
	DetailsImpact = "High-Frequency Metallic Impact Detected (Sawing/Hammering)"
	DetailsRumble = "Normal Low-Frequency Background Rumble"
)

// lowConfidence is reported for every LOW reading.
const lowConfidence = 0.1

// Analyzer implements scoring.Analyzer for WAV audio.
type Analyzer struct{}

// New returns an acoustic analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyze decodes a WAV clip and classifies it.
func (a *Analyzer) Analyze(ctx context.Context, media []byte) (consensus.Reading, error) {
	ctx, span := tracer.Start(ctx, "acoustic.Analyze", trace.WithAttributes(
		attribute.Int("media.bytes", len(media)),
	))
	defer span.End()

	_, decodeSpan := tracer.Start(ctx, "acoustic.decode")
	samples, rate, err := decode(media)
	decodeSpan.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return consensus.Reading{}, err
	}
	if err := ctx.Err(); err != nil {
		return consensus.Reading{}, err
	}

	ratio := BandRatio(samples)
	r := Classify(ratio)
	span.SetAttributes(
		attribute.Int("audio.samples", len(samples)),
		attribute.Int("audio.sample_rate", rate),
		attribute.Float64("audio.band_ratio", ratio),
		attribute.String("reading.level", string(r.Level)),
	)
	return r, nil
}

// BandRatio returns (E(cD1)+E(cD2)) / (E(cA4)+1e-5) for the signal.
func BandRatio(samples []float64) float64 {
	coeffs := wavedec(samples, Levels)
	n := len(coeffs)
	if n < 3 {
		return 0
	}
	high := energy(coeffs[n-1]) + energy(coeffs[n-2])
	low := energy(coeffs[0])
	return high / (low + 1e-5)
}

// Classify maps a band ratio to a reading.
func Classify(ratio float64) consensus.Reading {
	if ratio > consensus.AudioRatioThreshold {
		return consensus.Reading{
			Level:      consensus.LevelHigh,
			Details:    DetailsImpact,
			Confidence: math.Min(ratio*10, 1),
		}
	}
	return consensus.Reading{
		Level:      consensus.LevelLow,
		Details:    DetailsRumble,
		Confidence: lowConfidence,
	}
}

// decode returns the mono samples and sample rate of a PCM WAV clip.
func decode(media []byte) ([]float64, int, error) {
	d := wav.NewDecoder(bytes.NewReader(media))
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid WAV file", incident.ErrValidation)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid WAV file: %w", incident.ErrValidation, err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("%w: WAV file has no samples", incident.ErrValidation)
	}

	ch := buf.Format.NumChannels
	if ch < 1 {
		ch = 1
	}
	frames := len(buf.Data) / ch
	mono := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[f*ch+c])
		}
		mono[f] = sum / float64(ch)
	}
	if frames == 0 {
		return nil, 0, fmt.Errorf("%w: WAV file has no complete frames", incident.ErrValidation)
	}
	return mono, buf.Format.SampleRate, nil
}

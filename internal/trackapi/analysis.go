package trackapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/linnemanlabs/trackwatch/internal/consensus"
	"github.com/linnemanlabs/trackwatch/internal/incident"
	"github.com/linnemanlabs/trackwatch/internal/scoring"
)

// multipartMemory is the part of a multipart body held in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

func (a *API) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	a.analyzeSingle(w, r, a.scoring.AnalyzeAudio)
}

func (a *API) handleAnalyzeThermal(w http.ResponseWriter, r *http.Request) {
	a.analyzeSingle(w, r, a.scoring.AnalyzeThermal)
}

func (a *API) analyzeSingle(w http.ResponseWriter, r *http.Request, analyze func(context.Context, []byte) (consensus.Reading, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.writeError(w, r, uploadError(err), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	media, err := formFile(r, "file")
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	reading, err := analyze(r.Context(), media)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (a *API) handleFullCheck(w http.ResponseWriter, r *http.Request) {
	lat, errLat := queryFloat(r, "lat")
	lng, errLng := queryFloat(r, "lng")
	if err := errors.Join(errLat, errLng); err != nil {
		a.writeError(w, r, err, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.writeError(w, r, uploadError(err), "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	audio, err := formFile(r, "audio")
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	image, err := formFile(r, "image")
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}

	inc, err := a.scoring.FullCheck(r.Context(), scoring.Coordinates{Lat: lat, Lng: lng}, audio, image)
	if err != nil {
		a.writeError(w, r, err, "", "lat", lat, "lng", lng)
		return
	}
	writeJSON(w, http.StatusOK, inc)
}

type thresholdRequest struct {
	Acoustic *float64 `json:"acoustic"`
	Thermal  *float64 `json:"thermal"`
}

func (a *API) handleThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err, "")
		return
	}
	if req.Acoustic == nil || req.Thermal == nil {
		a.writeError(w, r, fmt.Errorf("%w: acoustic and thermal scores are required", incident.ErrValidation), "")
		return
	}
	tier, err := a.scoring.Threshold(*req.Acoustic, *req.Thermal)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tier": tier})
}

func formFile(r *http.Request, field string) ([]byte, error) {
	f, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, fmt.Errorf("%w: multipart field %q is required", incident.ErrValidation, field)
	}
	if err != nil {
		return nil, uploadError(err)
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

// uploadError keeps body-limit errors intact and classifies every other
// multipart failure as a validation error.
func uploadError(err error) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return err
	}
	return fmt.Errorf("%w: invalid multipart upload: %v", incident.ErrValidation, err)
}

func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: query parameter %q is required", incident.ErrValidation, name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: query parameter %q must be a number", incident.ErrValidation, name)
	}
	return v, nil
}

package importer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/auth"
	"github.com/upsc-prep/backend/internal/models"
)

const maxUploadBytes = 50 << 20

// Event is one line of the NDJSON import stream.
type Event struct {
	Progress *Progress           `json:"progress,omitempty"`
	Result   *models.ImportResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type Handler struct {
	importer *Importer
}

func NewHandler(importer *Importer) *Handler {
	return &Handler{importer: importer}
}

// Import accepts a CSV as a multipart "file" field or as the raw body and
// streams progress as newline-delimited JSON. Must run behind RequireRole(admin).
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	body, err := uploadedFile(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Please select a CSV file first"})
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)
	emit := func(e Event) {
		if err := enc.Encode(e); err != nil {
			log.Debug().Err(err).Str("component", "importer").Msg("client went away")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := h.importer.Import(r.Context(), body, p.UserID, func(pr Progress) {
		emit(Event{Progress: &pr})
	})
	if err != nil {
		var rowErr *RowError
		if !errors.As(err, &rowErr) {
			log.Error().Err(err).Str("component", "importer").Msg("import failed")
		}
		emit(Event{Result: &result, Error: err.Error()})
		return
	}
	emit(Event{Result: &result})
}

func uploadedFile(r *http.Request) (io.ReadCloser, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return file, nil
	}
	if r.Body == nil || r.ContentLength == 0 {
		return nil, errors.New("empty body")
	}
	return r.Body, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

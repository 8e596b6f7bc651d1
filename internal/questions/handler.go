package questions

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/upsc-prep/backend/internal/auth"
	"github.com/upsc-prep/backend/internal/models"
)

var timeNow = time.Now

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// ── Search ──────────────────────────────────────────────

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := parseSearchParams(r.URL.Query())

	result, err := h.service.Search(r.Context(), params, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to search questions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		writeError(w, err, "Failed to list subjects")
		return
	}
	writeJSON(w, http.StatusOK, models.SubjectsResponse{Subjects: subjects})
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.service.GetQuestion(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to get question")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ── User questions ──────────────────────────────────────

func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	q, err := h.service.AddQuestion(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeError(w, err, "Failed to save question")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteQuestion(r.Context(), id, auth.UserID(r.Context())); err != nil {
		writeError(w, err, "Failed to delete question")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Model answers & submissions ─────────────────────────

func (h *Handler) ModelAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	answer, err := h.service.ModelAnswer(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, err, "Failed to generate model answer")
		return
	}
	writeJSON(w, http.StatusOK, models.ModelAnswerResponse{QuestionID: id, ModelAnswer: answer})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.service.SubmitAnswer(r.Context(), auth.UserID(r.Context()), id, req.AnswerText)
	if err != nil {
		writeError(w, err, "Failed to submit answer")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) MyAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	answer, err := h.service.MyAnswer(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeError(w, err, "Failed to get answer")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// MyAnswers serves GET /answers?question_ids=a,b,c.
func (h *Handler) MyAnswers(w http.ResponseWriter, r *http.Request) {
	var ids []uuid.UUID
	for _, raw := range splitList(r.URL.Query().Get("question_ids")) {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question ID: " + raw})
			return
		}
		ids = append(ids, id)
	}

	answers, err := h.service.MyAnswers(r.Context(), auth.UserID(r.Context()), ids)
	if err != nil {
		writeError(w, err, "Failed to list answers")
		return
	}
	writeJSON(w, http.StatusOK, answers)
}

// ── Helpers ─────────────────────────────────────────────

// parseSearchParams reads the search filters from the query string. Malformed
// numbers are ignored rather than rejected.
func parseSearchParams(query url.Values) models.SearchParams {
	p := models.SearchParams{
		Subject:           strings.TrimSpace(query.Get("subject")),
		ExamType:          models.ExamType(query.Get("exam_type")),
		QuestionType:      models.QuestionType(query.Get("question_type")),
		Keywords:          splitList(query.Get("keywords")),
		SortBy:            models.SortField(query.Get("sort_by")),
		SortOrder:         models.SortOrder(strings.ToLower(query.Get("sort_order"))),
		Limit:             intQueryParam(query, "limit", models.DefaultSearchLimit),
		Offset:            intQueryParam(query, "offset", 0),
		UserQuestionsOnly: query.Get("mine") == "true",
	}
	p.Year = optionalInt(query, "year")
	p.YearStart = optionalInt(query, "year_start")
	p.YearEnd = optionalInt(query, "year_end")

	if preset := models.YearPreset(query.Get("years")); preset != "" && p.Year == nil && p.YearStart == nil && p.YearEnd == nil {
		switch preset {
		case models.PresetLast5Years, models.PresetLast10Years, models.PresetAllYears:
			preset.Apply(&p, timeNow())
		}
	}
	return p
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalInt(query url.Values, key string) *int {
	s := query.Get(key)
	if s == "" {
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

func intQueryParam(query url.Values, key string, defaultVal int) int {
	s := query.Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid question ID"})
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported with fallback.
func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "You can only delete questions you added"})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Question not found"})
	case errors.Is(err, ErrAnswerNotFound):
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "No answer submitted yet"})
	case IsClientError(err):
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrModelAnswerFailed):
		log.Error().Err(err).Str("component", "questions").Msg("model answer failed")
		writeJSON(w, http.StatusBadGateway, models.ErrorResponse{Error: "Failed to generate model answer. Please try again."})
	default:
		log.Error().Err(err).Str("component", "questions").Msg(fallback)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

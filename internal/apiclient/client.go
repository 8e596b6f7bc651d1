// Package apiclient talks to the PYQ HTTP API. It implements pyq.Backend for
// the terminal client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/upsc-prep/backend/internal/models"
)

// HTTPDoer abstracts the HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    HTTPDoer
}

func New(baseURL string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: client}
}

// SignedIn reports whether the client carries a token.
func (c *Client) SignedIn() bool {
	return c.Token != ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e models.ErrorResponse
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.Token = resp.Token
	return &resp, nil
}

func (c *Client) Search(ctx context.Context, p models.SearchParams) (*models.SearchResult, error) {
	var result models.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/questions?"+searchQuery(p).Encode(), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ModelAnswer(ctx context.Context, questionID uuid.UUID) (string, error) {
	var resp models.ModelAnswerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/questions/"+questionID.String()+"/model-answer", nil, &resp); err != nil {
		return "", err
	}
	return resp.ModelAnswer, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, questionID uuid.UUID, text string) (*models.SubmitAnswerResponse, error) {
	var resp models.SubmitAnswerResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/questions/"+questionID.String()+"/answers",
		models.SubmitAnswerRequest{AnswerText: text}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MyAnswers(ctx context.Context, questionIDs []uuid.UUID) (map[uuid.UUID]models.QuestionAnswer, error) {
	ids := make([]string, len(questionIDs))
	for i, id := range questionIDs {
		ids[i] = id.String()
	}
	q := url.Values{"question_ids": {strings.Join(ids, ",")}}

	answers := make(map[uuid.UUID]models.QuestionAnswer)
	if err := c.do(ctx, http.MethodGet, "/api/v1/answers?"+q.Encode(), nil, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func searchQuery(p models.SearchParams) url.Values {
	q := url.Values{}
	setInt := func(key string, v *int) {
		if v != nil {
			q.Set(key, strconv.Itoa(*v))
		}
	}
	setInt("year", p.Year)
	setInt("year_start", p.YearStart)
	setInt("year_end", p.YearEnd)
	if p.Subject != "" {
		q.Set("subject", p.Subject)
	}
	if p.ExamType != "" {
		q.Set("exam_type", string(p.ExamType))
	}
	if p.QuestionType != "" {
		q.Set("question_type", string(p.QuestionType))
	}
	if len(p.Keywords) > 0 {
		q.Set("keywords", strings.Join(p.Keywords, ","))
	}
	if p.SortBy != "" {
		q.Set("sort_by", string(p.SortBy))
	}
	if p.SortOrder != "" {
		q.Set("sort_order", string(p.SortOrder))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if p.UserQuestionsOnly {
		q.Set("mine", "true")
	}
	return q
}

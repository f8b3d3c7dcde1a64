// Package client is the typed JSON/HTTP client of the letters API. It is the
// remote collaborator the lifecycle controller drives.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"letterflow/internal/lifecycle"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithTimeout bounds every request. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.Timeout = timeout }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the bearer token the client currently sends.
func (c *Client) Token() string {
	return c.token
}

type LetterUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Rationale   *string `json:"rationale,omitempty"`
	ArtifactRef *string `json:"artifactRef,omitempty"`
}

// ContentUpdate builds a LetterUpdate carrying only content fields.
func ContentUpdate(patch lifecycle.ContentPatch) LetterUpdate {
	return LetterUpdate{Title: patch.Title, Description: patch.Description, Rationale: patch.Rationale}
}

type Artifact struct {
	URL      string `json:"artifactUrl"`
	Filename string `json:"filename"`
}

type Session struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	UserID       string         `json:"userId"`
	UserName     string         `json:"userName"`
	Role         lifecycle.Role `json:"role"`
}

type ListQuery struct {
	Statuses       []lifecycle.Status
	DecisionTypeID string
	Text           string
	Mine           bool
	Archived       bool
	Sort           string
	Page           int
	PageSize       int
}

type LetterPage struct {
	Letters  []lifecycle.Letter `json:"letters"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type TransitionRecord struct {
	ID         int64     `json:"id"`
	LetterID   string    `json:"letterId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	ActorID    string    `json:"actorId"`
	ActorRole  string    `json:"actorRole"`
	Reason     string    `json:"reason,omitempty"`
	Signature  string    `json:"signature,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type SearchResult struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	Status         string `json:"status"`
	DecisionTypeID string `json:"decisionTypeId"`
}

type DecisionType struct {
	ID                  string `json:"id"`
	Title               string `json:"title"`
	Sector              string `json:"sector"`
	SupervisorID        string `json:"supervisorId"`
	IsPresidentDecision bool   `json:"isPresidentDecision"`
}

func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	var session Session
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", nil, body, &session); err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var session Session
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.do(ctx, "refresh session", http.MethodPost, "/api/session/refresh", nil, body, &session); err != nil {
		return Session{}, err
	}
	c.token = session.Token
	return session, nil
}

func (c *Client) GetLetter(ctx context.Context, id string) (lifecycle.Letter, error) {
	return c.letterCall(ctx, "get letter", http.MethodGet, "/api/letters/"+url.PathEscape(id), nil)
}

func (c *Client) UpdateStatusBySupervisor(ctx context.Context, id string, status lifecycle.Status, reason string) (lifecycle.Letter, error) {
	body := map[string]any{"status": status}
	if strings.TrimSpace(reason) != "" {
		body["reason"] = reason
	}
	return c.letterCall(ctx, "update status by supervisor", http.MethodPut, "/api/letters/"+url.PathEscape(id)+"/status/supervisor", body)
}

func (c *Client) UpdateStatusByPresident(ctx context.Context, id string, status lifecycle.Status, signature lifecycle.SignatureOption, reason string) (lifecycle.Letter, error) {
	body := map[string]any{"status": status}
	if signature != "" {
		body["signature"] = signature
	}
	if strings.TrimSpace(reason) != "" {
		body["reason"] = reason
	}
	return c.letterCall(ctx, "update status by president", http.MethodPut, "/api/letters/"+url.PathEscape(id)+"/status/president", body)
}

func (c *Client) UpdateLetter(ctx context.Context, id string, update LetterUpdate) (lifecycle.Letter, error) {
	return c.letterCall(ctx, "update letter", http.MethodPut, "/api/letters/"+url.PathEscape(id), update)
}

// RenderArtifact asks the API to render the official approval document for a
// letter with the given signature option.
func (c *Client) RenderArtifact(ctx context.Context, id string, signature lifecycle.SignatureOption) (Artifact, error) {
	var artifact Artifact
	body := map[string]any{"signature": signature}
	if err := c.do(ctx, "render artifact", http.MethodPost, "/api/letters/"+url.PathEscape(id)+"/artifact", nil, body, &artifact); err != nil {
		return Artifact{}, err
	}
	if artifact.Filename == "" {
		artifact.Filename = lifecycle.ArtifactFilename(artifact.URL)
	}
	return artifact, nil
}

// ArtifactURL is the API address that opens a stored artifact.
func (c *Client) ArtifactURL(filename string) string {
	return c.baseURL + "/api/artifacts/" + url.PathEscape(filename)
}

// DownloadArtifact streams a stored artifact into w. downloadAs only changes
// the attachment name the storage backend advertises.
func (c *Client) DownloadArtifact(ctx context.Context, filename, downloadAs string, w io.Writer) (int64, error) {
	target := c.ArtifactURL(filename)
	if strings.TrimSpace(downloadAs) != "" {
		target += "?download=" + url.QueryEscape(downloadAs)
	}
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, &RemoteError{Op: "download artifact", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &RemoteError{Op: "download artifact", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, decodeRemoteError("download artifact", resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &RemoteError{Op: "download artifact", Err: fmt.Errorf("read body: %w", err)}
	}
	return n, nil
}

func (c *Client) ListLetters(ctx context.Context, q ListQuery) (LetterPage, error) {
	values := url.Values{}
	for _, status := range q.Statuses {
		values.Add("status", string(status))
	}
	if q.DecisionTypeID != "" {
		values.Set("decisionTypeId", q.DecisionTypeID)
	}
	if q.Text != "" {
		values.Set("q", q.Text)
	}
	if q.Mine {
		values.Set("mine", "true")
	}
	if q.Archived {
		values.Set("archived", "true")
	}
	if q.Sort != "" {
		values.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	var page LetterPage
	if err := c.do(ctx, "list letters", http.MethodGet, "/api/letters", values, nil, &page); err != nil {
		return LetterPage{}, err
	}
	return page, nil
}

func (c *Client) History(ctx context.Context, id string, limit int) ([]Revision, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload struct {
		Revisions []Revision `json:"revisions"`
	}
	if err := c.do(ctx, "letter history", http.MethodGet, "/api/letters/"+url.PathEscape(id)+"/history", values, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Revisions, nil
}

func (c *Client) Transitions(ctx context.Context, id string) ([]TransitionRecord, error) {
	var payload struct {
		Transitions []TransitionRecord `json:"transitions"`
	}
	if err := c.do(ctx, "letter transitions", http.MethodGet, "/api/letters/"+url.PathEscape(id)+"/transitions", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Transitions, nil
}

func (c *Client) Search(ctx context.Context, text string, limit int) ([]SearchResult, error) {
	values := url.Values{"q": []string{text}}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var payload struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.do(ctx, "search", http.MethodGet, "/api/search", values, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

func (c *Client) DecisionTypes(ctx context.Context) ([]DecisionType, error) {
	var payload struct {
		DecisionTypes []DecisionType `json:"decisionTypes"`
	}
	if err := c.do(ctx, "decision types", http.MethodGet, "/api/decision-types", nil, nil, &payload); err != nil {
		return nil, err
	}
	return payload.DecisionTypes, nil
}

// DecisionTypeChange creates or patches a decision type. Nil fields are left
// unchanged; an empty SupervisorID clears the supervisor.
type DecisionTypeChange struct {
	Title               *string `json:"title,omitempty"`
	Sector              *string `json:"sector,omitempty"`
	SupervisorID        *string `json:"supervisorId,omitempty"`
	IsPresidentDecision *bool   `json:"isPresidentDecision,omitempty"`
}

func (c *Client) CreateDecisionType(ctx context.Context, change DecisionTypeChange) (DecisionType, error) {
	var payload struct {
		DecisionType DecisionType `json:"decisionType"`
	}
	if err := c.do(ctx, "create decision type", http.MethodPost, "/api/decision-types", nil, change, &payload); err != nil {
		return DecisionType{}, err
	}
	return payload.DecisionType, nil
}

func (c *Client) UpdateDecisionType(ctx context.Context, id string, change DecisionTypeChange) (DecisionType, error) {
	var payload struct {
		DecisionType DecisionType `json:"decisionType"`
	}
	if err := c.do(ctx, "update decision type", http.MethodPut, "/api/decision-types/"+url.PathEscape(id), nil, change, &payload); err != nil {
		return DecisionType{}, err
	}
	return payload.DecisionType, nil
}

func (c *Client) DeleteDecisionType(ctx context.Context, id string) error {
	return c.do(ctx, "delete decision type", http.MethodDelete, "/api/decision-types/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) letterCall(ctx context.Context, op, method, path string, body any) (lifecycle.Letter, error) {
	var payload struct {
		Letter lifecycle.Letter `json:"letter"`
	}
	if err := c.do(ctx, op, method, path, nil, body, &payload); err != nil {
		return lifecycle.Letter{}, err
	}
	return payload.Letter, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &RemoteError{Op: op, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := c.newRequest(ctx, method, target, reader)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote call failed", zap.String("op", op), zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeRemoteError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeRemoteError(op string, resp *http.Response) error {
	remoteErr := &RemoteError{Op: op, StatusCode: resp.StatusCode}
	var payload struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		remoteErr.Err = fmt.Errorf("read error body: %w", err)
		return remoteErr
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		remoteErr.Code = payload.Code
		remoteErr.Message = payload.Error
	} else if len(raw) > 0 {
		remoteErr.Message = strings.TrimSpace(string(raw))
	}
	return remoteErr
}

// IsStatus reports whether err is a RemoteError carrying the given HTTP status.
func IsStatus(err error, status int) bool {
	var remoteErr *RemoteError
	return errors.As(err, &remoteErr) && remoteErr.StatusCode == status
}

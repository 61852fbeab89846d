package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/orggraph/internal/graph"
	"github.com/alfredjeanlab/orggraph/internal/layout"
	"github.com/alfredjeanlab/orggraph/internal/model"
)

// HTTPClient implements Client using the orggraph HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Profiles ---

func (c *HTTPClient) ListProfiles(ctx context.Context) ([]*model.Profile, error) {
	var out []*model.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/v1/profiles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateProfile(ctx context.Context, req *CreateProfileRequest) (*model.Profile, error) {
	var p model.Profile
	if err := c.doJSON(ctx, http.MethodPost, "/v1/profiles", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) DeleteProfile(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/profiles/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) SetActive(ctx context.Context, id string, active bool) (*model.Profile, error) {
	var p model.Profile
	body := map[string]bool{"active": active}
	if err := c.doJSON(ctx, http.MethodPut, "/v1/profiles/"+url.PathEscape(id)+"/active", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- Structures ---

func (c *HTTPClient) GetStructure(ctx context.Context, id string) (*StructureResponse, error) {
	var resp StructureResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/profiles/"+url.PathEscape(id)+"/structure", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PutStructure(ctx context.Context, id string, doc json.RawMessage) (*StructureResponse, error) {
	var resp StructureResponse
	if err := c.doJSON(ctx, http.MethodPut, "/v1/profiles/"+url.PathEscape(id)+"/structure", doc, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Workspaces ---

func workspacePath(ws, rest string) string {
	return "/v1/workspaces/" + url.PathEscape(ws) + rest
}

func (c *HTTPClient) OpenWorkspace(ctx context.Context, ws, profileID string) (*OpenResponse, error) {
	var resp OpenResponse
	body := map[string]string{"profileId": profileID}
	if err := c.doJSON(ctx, http.MethodPost, workspacePath(ws, "/open"), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetGraph(ctx context.Context, ws string) (*GraphResponse, error) {
	var resp GraphResponse
	if err := c.doJSON(ctx, http.MethodGet, workspacePath(ws, "/graph"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SaveWorkspace(ctx context.Context, ws string) (*SaveResponse, error) {
	var resp SaveResponse
	if err := c.doJSON(ctx, http.MethodPost, workspacePath(ws, "/save"), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Synthesize(ctx context.Context, ws string, req *SynthesizeRequest) (*SynthesizeResponse, error) {
	if req == nil {
		req = &SynthesizeRequest{}
	}
	var resp SynthesizeResponse
	if err := c.doJSON(ctx, http.MethodPost, workspacePath(ws, "/synthesize"), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) LayoutRequest(ctx context.Context, ws string) (*layout.Request, error) {
	var req layout.Request
	if err := c.doJSON(ctx, http.MethodGet, workspacePath(ws, "/layout"), nil, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *HTTPClient) ApplyLayout(ctx context.Context, ws string, res layout.Result) (int, error) {
	var resp struct {
		Moved int `json:"moved"`
	}
	if err := c.doJSON(ctx, http.MethodPut, workspacePath(ws, "/layout"), res, &resp); err != nil {
		return 0, err
	}
	return resp.Moved, nil
}

func (c *HTTPClient) Search(ctx context.Context, ws, query string, limit int) ([]graph.Match, error) {
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []graph.Match
	if err := c.doJSON(ctx, http.MethodGet, workspacePath(ws, "/search?"+q.Encode()), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Rules ---

func (c *HTTPClient) Trigger(ctx context.Context, req *TriggerRequest) (*TriggerResponse, error) {
	var resp TriggerResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/trigger", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) Access(ctx context.Context, req *AccessRequest) (json.RawMessage, error) {
	var resp json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/v1/access", req, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Events ---

// Event is one server-sent event.
type Event struct {
	ID    string
	Topic string
	Data  json.RawMessage
}

// Watch streams the events of workspace ws to fn until ctx is done or the
// server closes the stream. lastEventID resumes after a reconnect.
func (c *HTTPClient) Watch(ctx context.Context, ws string, topics []string, lastEventID string, fn func(Event)) error {
	path := workspacePath(ws, "/events")
	if len(topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(topics, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return decodeAPIError(resp.StatusCode, body)
	}

	var evt Event
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 8<<20)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if evt.Topic != "" || len(evt.Data) > 0 {
				fn(evt)
			}
			evt = Event{}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			evt.Data = append(evt.Data, strings.TrimPrefix(line, "data:")...)
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     []model.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

func decodeAPIError(status int, body []byte) error {
	var errResp struct {
		Error  string             `json:"error"`
		Code   string             `json:"code"`
		Fields []model.FieldError `json:"fields"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Code: errResp.Code, Message: errResp.Error, Fields: errResp.Fields}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

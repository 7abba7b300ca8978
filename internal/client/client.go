// Package client is the JSON client for the control API. The runner is
// its primary consumer; it re-hydrates the server's classified error
// bodies so callers branch on kinds exactly as they would against core.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dotcommander/sparkq/internal/models"
)

// Client talks to a running control server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the given base URL (e.g. http://127.0.0.1:8475).
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks server liveness.
func (c *Client) Health() error {
	return c.do(http.MethodGet, "/health", nil, nil)
}

// GetQueue fetches a queue by id.
func (c *Client) GetQueue(id string) (*models.Queue, error) {
	var q models.Queue
	if err := c.do(http.MethodGet, "/api/queues/"+id, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQueueByName fetches a queue by its unique name.
func (c *Client) GetQueueByName(name string) (*models.Queue, error) {
	var q models.Queue
	if err := c.do(http.MethodGet, "/api/queues/by-name/"+name, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Peek returns the queue head without claiming, or nil when the queue
// has nothing queued.
func (c *Client) Peek(queueID string) (*models.Task, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/queues/"+queueID+"/peek", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.Transientf(err, "control server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var t models.Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode peek response: %w", err)
	}
	return &t, nil
}

// Claim attempts an atomic claim on a task.
func (c *Client) Claim(taskID string) (*models.ClaimDescriptor, error) {
	var d models.ClaimDescriptor
	if err := c.do(http.MethodPost, "/api/tasks/"+taskID+"/claim", struct{}{}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Complete reports a task finished successfully.
func (c *Client) Complete(taskID, summary string, data json.RawMessage) (*models.Task, error) {
	body := map[string]any{"result_summary": summary}
	if len(data) > 0 {
		body["result_data"] = data
	}
	var t models.Task
	if err := c.do(http.MethodPost, "/api/tasks/"+taskID+"/complete", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Fail reports a task failed.
func (c *Client) Fail(taskID, errorMessage string) (*models.Task, error) {
	var t models.Task
	body := map[string]any{"error_message": errorMessage}
	if err := c.do(http.MethodPost, "/api/tasks/"+taskID+"/fail", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// do performs one request. Non-2xx responses come back as classified
// errors rebuilt from the response body.
func (c *Client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Transientf(err, "control server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Context map[string]string `json:"context"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil || eb.Kind == "" {
		return &models.ClassifiedError{
			Kind:    kindForStatus(resp.StatusCode),
			Message: fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
		}
	}

	ce := &models.ClassifiedError{
		Kind:    models.ErrorKind(eb.Kind),
		Message: eb.Error,
		Ctx:     eb.Context,
	}
	if eb.Context != nil {
		ce.ObservedStatus = eb.Context["observed_status"]
		ce.CorrelationID = eb.Context["correlation_id"]
	}
	return ce
}

func kindForStatus(status int) models.ErrorKind {
	switch status {
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusBadRequest:
		return models.KindValidation
	case http.StatusConflict:
		return models.KindConflict
	case http.StatusServiceUnavailable:
		return models.KindTransient
	default:
		return models.KindInternal
	}
}

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"taskplane/pkg/api"
)

// TaskClient handles API calls to the taskplane controller.
type TaskClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewTaskClient creates a new client with the given base URL.
func NewTaskClient(baseURL string) *TaskClient {
	return &TaskClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do sends one JSON request and decodes the response into out when non-nil.
func (c *TaskClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// CreateJob sends POST /jobs to admit a new job.
func (c *TaskClient) CreateJob(req api.CreateJobRequest) (*api.CreateJobResponse, error) {
	var result api.CreateJobResponse
	if err := c.do(http.MethodPost, "/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTask sends GET /jobs/{job}/tasks/{instance}.
func (c *TaskClient) GetTask(jobID string, instanceID uint32) (*api.TaskResponse, error) {
	var result api.TaskResponse
	path := fmt.Sprintf("/jobs/%s/tasks/%d", jobID, instanceID)
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTaskCache sends GET /jobs/{job}/tasks/{instance}/cache.
func (c *TaskClient) GetTaskCache(jobID string, instanceID uint32) (*api.TaskResponse, error) {
	var result api.TaskResponse
	path := fmt.Sprintf("/jobs/%s/tasks/%d/cache", jobID, instanceID)
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTasks sends GET /jobs/{job}/tasks with an optional [from, to) range.
func (c *TaskClient) ListTasks(jobID string, from, to string) (*api.ListTasksResponse, error) {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	path := fmt.Sprintf("/jobs/%s/tasks", jobID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result api.ListTasksResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryTasks sends POST /jobs/{job}/tasks:query.
func (c *TaskClient) QueryTasks(jobID string, req api.QueryTasksRequest) (*api.QueryTasksResponse, error) {
	var result api.QueryTasksResponse
	path := fmt.Sprintf("/jobs/%s/tasks:query", jobID)
	if err := c.do(http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Lifecycle sends POST /jobs/{job}/tasks:{verb} with the given ranges.
// verb is one of start, stop, restart, refresh.
func (c *TaskClient) Lifecycle(jobID, verb string, ranges []api.InstanceRangeBody) (*api.BulkResponse, error) {
	var result api.BulkResponse
	path := fmt.Sprintf("/jobs/%s/tasks:%s", jobID, verb)
	if err := c.do(http.MethodPost, path, api.RangesRequest{Ranges: ranges}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetEvents sends GET /jobs/{job}/tasks/{instance}/events.
func (c *TaskClient) GetEvents(jobID string, instanceID uint32, limit, runID string) (*api.GetEventsResponse, error) {
	q := url.Values{}
	if limit != "" {
		q.Set("limit", limit)
	}
	if runID != "" {
		q.Set("run_id", runID)
	}
	path := fmt.Sprintf("/jobs/%s/tasks/%d/events", jobID, instanceID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var result api.GetEventsResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteEvents sends DELETE /jobs/{job}/tasks/{instance}/events?run_id=.
func (c *TaskClient) DeleteEvents(jobID string, instanceID uint32, runID string) error {
	path := fmt.Sprintf("/jobs/%s/tasks/%d/events?run_id=%s", jobID, instanceID, url.QueryEscape(runID))
	return c.do(http.MethodDelete, path, nil, nil)
}

// BrowseSandbox sends GET /jobs/{job}/tasks/{instance}/sandbox.
func (c *TaskClient) BrowseSandbox(jobID string, instanceID uint32, taskID string) (*api.SandboxResponse, error) {
	path := fmt.Sprintf("/jobs/%s/tasks/%d/sandbox", jobID, instanceID)
	if taskID != "" {
		path += "?task_id=" + url.QueryEscape(taskID)
	}

	var result api.SandboxResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

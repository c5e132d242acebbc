package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"taskplane/internal/task"
	"taskplane/pkg/api"
)

func testJob(jobID uuid.UUID, instances uint32) *task.JobConfig {
	return &task.JobConfig{
		JobID:         jobID,
		Name:          "web",
		InstanceCount: instances,
		Version:       1,
		Default:       &task.TaskConfig{Name: "web", Image: "nginx:1.27", Version: 1},
	}
}

func testInfo(jobID uuid.UUID, instanceID uint32) *task.TaskInfo {
	return &task.TaskInfo{
		JobID:      jobID,
		InstanceID: instanceID,
		Runtime:    task.NewRuntime(jobID, instanceID, 1, false),
	}
}

func TestGetTask(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name           string
		path           string
		mockSetup      func(*mockStore)
		expectedStatus int
	}{
		{
			name: "Success",
			path: "/jobs/" + jobID.String() + "/tasks/0",
			mockSetup: func(m *mockStore) {
				m.getJobResp = testJob(jobID, 3)
				m.getTaskResp = testInfo(jobID, 0)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid Job UUID",
			path:           "/jobs/not-a-uuid/tasks/0",
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid Instance",
			path:           "/jobs/" + jobID.String() + "/tasks/abc",
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Job Not Found",
			path: "/jobs/" + jobID.String() + "/tasks/0",
			mockSetup: func(m *mockStore) {
				m.getJobErr = task.ErrJobNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "Instance Out Of Range",
			path: "/jobs/" + jobID.String() + "/tasks/9",
			mockSetup: func(m *mockStore) {
				m.getJobResp = testJob(jobID, 3)
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{}
			tt.mockSetup(mock)
			h, _ := newTestHandlers(mock, &mockDriver{}, &mockExec{})

			mux := http.NewServeMux()
			mux.HandleFunc("GET /jobs/{job}/tasks/{instance}", h.GetTask)

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("got status %d, want %d", rec.Code, tt.expectedStatus)
			}
		})
	}
}

func TestGetTask_ResponseBody(t *testing.T) {
	jobID := uuid.New()
	mock := &mockStore{
		getJobResp:  testJob(jobID, 3),
		getTaskResp: testInfo(jobID, 2),
	}
	h, _ := newTestHandlers(mock, &mockDriver{}, &mockExec{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/{job}/tasks/{instance}", h.GetTask)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String()+"/tasks/2", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp api.TaskResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.State != string(task.StateInitialized) {
		t.Errorf("got state %q, want INITIALIZED", resp.State)
	}
	if resp.RunID != 1 || resp.InstanceID != 2 {
		t.Errorf("got run %d instance %d, want 1 and 2", resp.RunID, resp.InstanceID)
	}
	if resp.TaskID != task.TaskID(jobID, 2, 1) {
		t.Errorf("got task id %q", resp.TaskID)
	}
}

func TestListTasks_ClampsRange(t *testing.T) {
	jobID := uuid.New()
	mock := &mockStore{
		getJobResp: testJob(jobID, 3),
		listTasksResp: map[uint32]*task.TaskInfo{
			0: testInfo(jobID, 0),
			1: testInfo(jobID, 1),
			2: testInfo(jobID, 2),
		},
	}
	h, _ := newTestHandlers(mock, &mockDriver{}, &mockExec{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/{job}/tasks", h.ListTasks)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String()+"/tasks?from=0&to=100", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp api.ListTasksResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Tasks) != 3 {
		t.Errorf("got %d tasks, want 3", len(resp.Tasks))
	}
}

func TestListTasks_FromPastEnd(t *testing.T) {
	jobID := uuid.New()
	mock := &mockStore{getJobResp: testJob(jobID, 3)}
	h, _ := newTestHandlers(mock, &mockDriver{}, &mockExec{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/{job}/tasks", h.ListTasks)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String()+"/tasks?from=3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}

func TestGetTaskCache(t *testing.T) {
	jobID := uuid.New()
	h, c := newTestHandlers(&mockStore{}, &mockDriver{}, &mockExec{})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs/{job}/tasks/{instance}/cache", h.GetTaskCache)

	// Miss: instance not resident.
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String()+"/tasks/0/cache", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cache miss: got status %d, want 404", rec.Code)
	}

	// Hit after population.
	c.Put(jobID, 0, task.NewRuntime(jobID, 0, 1, false), nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("cache hit: got status %d, want 200", rec.Code)
	}
}

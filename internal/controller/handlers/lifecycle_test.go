package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"taskplane/internal/goalstate"
	"taskplane/internal/task"
	"taskplane/pkg/api"
)

func TestStartTasks(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name           string
		body           string
		mockSetup      func(*mockStore, *mockDriver)
		expectedStatus int
		wantRanges     []goalstate.InstanceRange
	}{
		{
			name: "Explicit Ranges",
			body: `{"ranges":[{"from":0,"to":2},{"from":4,"to":5}]}`,
			mockSetup: func(s *mockStore, d *mockDriver) {
				d.bulkResp = &goalstate.BulkResult{Succeeded: []uint32{0, 1, 4}}
			},
			expectedStatus: http.StatusOK,
			wantRanges:     []goalstate.InstanceRange{{From: 0, To: 2}, {From: 4, To: 5}},
		},
		{
			name: "Empty Body Means Whole Job",
			body: "",
			mockSetup: func(s *mockStore, d *mockDriver) {
				s.getJobResp = testJob(jobID, 3)
				d.bulkResp = &goalstate.BulkResult{Succeeded: []uint32{0, 1, 2}}
			},
			expectedStatus: http.StatusOK,
			wantRanges:     []goalstate.InstanceRange{{From: 0, To: 3}},
		},
		{
			name: "Job Not Found",
			body: `{"ranges":[{"from":0,"to":1}]}`,
			mockSetup: func(s *mockStore, d *mockDriver) {
				d.bulkErr = task.ErrJobNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Invalid Body",
			body:           `{"ranges":`,
			mockSetup:      func(s *mockStore, d *mockDriver) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{}
			driver := &mockDriver{}
			tt.mockSetup(store, driver)
			h, _ := newTestHandlers(store, driver, &mockExec{})

			mux := http.NewServeMux()
			mux.HandleFunc("POST /jobs/{job}/tasks:start", h.StartTasks)

			req := httptest.NewRequest(http.MethodPost,
				"/jobs/"+jobID.String()+"/tasks:start", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.expectedStatus)
			}
			if tt.wantRanges != nil {
				if len(driver.capturedRanges) != len(tt.wantRanges) {
					t.Fatalf("got ranges %v, want %v", driver.capturedRanges, tt.wantRanges)
				}
				for i, r := range tt.wantRanges {
					if driver.capturedRanges[i] != r {
						t.Errorf("got ranges %v, want %v", driver.capturedRanges, tt.wantRanges)
					}
				}
			}
		})
	}
}

func TestStopTasks_PartitionedResponse(t *testing.T) {
	jobID := uuid.New()
	driver := &mockDriver{
		bulkResp: &goalstate.BulkResult{
			Succeeded: []uint32{0, 1, 3},
			Failed:    map[uint32]string{4: "instance 4 out of range, job has 4 instances"},
		},
	}
	h, _ := newTestHandlers(&mockStore{}, driver, &mockExec{})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs/{job}/tasks:stop", h.StopTasks)

	body := bytes.NewBufferString(`{"ranges":[{"from":0,"to":5}]}`)
	req := httptest.NewRequest(http.MethodPost, "/jobs/"+jobID.String()+"/tasks:stop", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	var resp api.BulkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Succeeded) != 3 || len(resp.Failed) != 1 {
		t.Errorf("got %v / %v, want 3 succeeded and 1 failed", resp.Succeeded, resp.Failed)
	}
	if _, ok := resp.Failed[4]; !ok {
		t.Errorf("instance 4 missing from failed set: %v", resp.Failed)
	}
}

func TestCreateJob(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "Success",
			body:           `{"name":"web","instance_count":3,"config":{"name":"web","image":"nginx:1.27"}}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing Image",
			body:           `{"name":"web","instance_count":3,"config":{"name":"web"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Zero Instances",
			body:           `{"name":"web","instance_count":0,"config":{"name":"web","image":"nginx:1.27"}}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Bad Constraint",
			body:           `{"name":"web","instance_count":1,"config":{"name":"web","image":"nginx:1.27","constraint":{"kind":"NAND"}}}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := &mockDriver{}
			h, _ := newTestHandlers(&mockStore{}, driver, &mockExec{})

			req := httptest.NewRequest(http.MethodPost, "/jobs", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.CreateJob(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusCreated {
				if driver.admittedJob == nil || driver.admittedJob.Version != 1 {
					t.Errorf("admitted job %+v, want version defaulted to 1", driver.admittedJob)
				}
			}
		})
	}
}

func TestUpdateJobConfig(t *testing.T) {
	jobID := uuid.New()

	tests := []struct {
		name           string
		path           string
		body           string
		mockSetup      func(*mockStore)
		expectedStatus int
		wantVersion    uint64
	}{
		{
			name: "Success Explicit Version",
			path: "/jobs/" + jobID.String() + "/config",
			body: `{"config":{"name":"web","image":"nginx:1.28","version":2}}`,
			mockSetup: func(m *mockStore) {
				m.getJobResp = testJob(jobID, 3)
			},
			expectedStatus: http.StatusOK,
			wantVersion:    2,
		},
		{
			name: "Version Defaults To Next",
			path: "/jobs/" + jobID.String() + "/config",
			body: `{"config":{"name":"web","image":"nginx:1.28"}}`,
			mockSetup: func(m *mockStore) {
				m.getJobResp = testJob(jobID, 3)
			},
			expectedStatus: http.StatusOK,
			wantVersion:    2,
		},
		{
			name: "Stale Version",
			path: "/jobs/" + jobID.String() + "/config",
			body: `{"config":{"name":"web","image":"nginx:1.28","version":1}}`,
			mockSetup: func(m *mockStore) {
				m.getJobResp = testJob(jobID, 3)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "Missing Image",
			path:           "/jobs/" + jobID.String() + "/config",
			body:           `{"config":{"name":"web"}}`,
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Job Not Found",
			path: "/jobs/" + jobID.String() + "/config",
			body: `{"config":{"name":"web","image":"nginx:1.28"}}`,
			mockSetup: func(m *mockStore) {
				m.getJobErr = task.ErrJobNotFound
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Invalid Job UUID",
			path:           "/jobs/not-a-uuid/config",
			body:           `{"config":{"name":"web","image":"nginx:1.28"}}`,
			mockSetup:      func(m *mockStore) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockStore{}
			tt.mockSetup(mock)
			h, _ := newTestHandlers(mock, &mockDriver{}, &mockExec{})

			mux := http.NewServeMux()
			mux.HandleFunc("PUT /jobs/{job}/config", h.UpdateJobConfig)

			req := httptest.NewRequest(http.MethodPut, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Fatalf("got status %d, want %d", rec.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}
			if mock.capturedVersion != tt.wantVersion {
				t.Errorf("stored version %d, want %d", mock.capturedVersion, tt.wantVersion)
			}
			if mock.capturedConfig == nil || mock.capturedConfig.Image != "nginx:1.28" {
				t.Errorf("stored config %+v, want image nginx:1.28", mock.capturedConfig)
			}

			var resp api.UpdateJobConfigResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Version != tt.wantVersion {
				t.Errorf("response version %d, want %d", resp.Version, tt.wantVersion)
			}
		})
	}
}

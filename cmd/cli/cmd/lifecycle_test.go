package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskplane/pkg/api"
)

// findCommand looks up a registered subcommand by its first Use word.
func findCommand(t *testing.T, name string) *cobra.Command {
	t.Helper()
	for _, cmd := range rootCmd.Commands() {
		if strings.HasPrefix(cmd.Use, name) {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func TestStartCommand_WithRanges(t *testing.T) {
	resetViper()

	var captured api.RangesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST method, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/jobs/job-1/tasks:start") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		json.NewEncoder(w).Encode(api.BulkResponse{Succeeded: []uint32{0, 1, 2, 7}})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"start", "job-1", "--ranges", "0-3,7"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []api.InstanceRangeBody{{From: 0, To: 3}, {From: 7, To: 8}}
	if len(captured.Ranges) != len(want) {
		t.Fatalf("expected %d ranges, got %d", len(want), len(captured.Ranges))
	}
	for i, r := range want {
		if captured.Ranges[i] != r {
			t.Errorf("range %d: expected %+v, got %+v", i, r, captured.Ranges[i])
		}
	}

	output := stdout.String()
	if !strings.Contains(output, "4 instance(s) started") {
		t.Errorf("expected success count in output, got: %s", output)
	}
}

func TestStopCommand_WholeJobAndFailures(t *testing.T) {
	resetViper()

	// Reset the ranges flag set by earlier tests
	findCommand(t, "stop").Flags().Set("ranges", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/jobs/job-1/tasks:stop") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req api.RangesRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Ranges) != 0 {
			t.Errorf("expected no ranges for whole-job stop, got %+v", req.Ranges)
		}

		json.NewEncoder(w).Encode(api.BulkResponse{
			Succeeded: []uint32{0, 1},
			Failed:    map[uint32]string{2: "revision conflict"},
		})
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"stop", "job-1"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "2 instance(s) stopped") {
		t.Errorf("expected success count in output, got: %s", output)
	}
	if !strings.Contains(output, "revision conflict") {
		t.Errorf("expected failure reason in output, got: %s", output)
	}
}

func TestRestartCommand_InvalidRanges(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for invalid ranges")
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"restart", "job-1", "--ranges", "5-2"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "invalid range") {
		t.Errorf("expected range error in output, got: %s", output)
	}
}

func TestRefreshCommand_NotFound(t *testing.T) {
	resetViper()

	findCommand(t, "refresh").Flags().Set("ranges", "")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Job not found"}`))
	}))
	defer server.Close()

	viper.Set("url", server.URL)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs([]string{"refresh", "no-such-job"})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "Error (404)") {
		t.Errorf("expected 404 error in output, got: %s", output)
	}
}

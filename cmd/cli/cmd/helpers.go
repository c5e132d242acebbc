package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"taskplane/pkg/api"
)

// parseRanges turns "0-2,5-7" into half-open instance ranges: "0-2" covers
// instances 0 and 1, a bare "3" covers instance 3 alone.
func parseRanges(s string) ([]api.InstanceRangeBody, error) {
	if s == "" {
		return nil, nil
	}

	var ranges []api.InstanceRangeBody
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		from, to, found := strings.Cut(part, "-")
		fromN, err := strconv.ParseUint(from, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		toN := fromN + 1
		if found {
			toN, err = strconv.ParseUint(to, 10, 32)
			if err != nil || toN <= fromN {
				return nil, fmt.Errorf("invalid range %q", part)
			}
		}
		ranges = append(ranges, api.InstanceRangeBody{From: uint32(fromN), To: uint32(toN)})
	}
	return ranges, nil
}

func parseInstanceArg(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid instance id %q", s)
	}
	return uint32(n), nil
}

func printClientError(cmd *cobra.Command, err error) {
	if apiErr, ok := err.(*APIError); ok {
		cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
	} else {
		cmd.Printf("Error: %v\n", err)
	}
}

func printTask(cmd *cobra.Command, t api.TaskResponse) {
	cmd.Printf("Instance:  %d\n", t.InstanceID)
	cmd.Printf("Task ID:   %s\n", t.TaskID)
	cmd.Printf("Run:       %d\n", t.RunID)
	cmd.Printf("State:     %s (goal %s)\n", t.State, t.GoalState)
	if t.Healthy != "" {
		cmd.Printf("Health:    %s\n", t.Healthy)
	}
	if t.Host != "" {
		cmd.Printf("Host:      %s\n", t.Host)
	}
	cmd.Printf("Config:    v%d (desired v%d)\n", t.ConfigVersion, t.DesiredConfigVersion)
	if t.FailureCount > 0 {
		cmd.Printf("Failures:  %d\n", t.FailureCount)
	}
	if t.Termination != nil {
		cmd.Printf("Ended:     %s", t.Termination.Reason)
		if t.Termination.ExitCode != nil {
			cmd.Printf(" (exit %d)", *t.Termination.ExitCode)
		}
		cmd.Println()
	}
}

func printBulkResult(cmd *cobra.Command, verb string, result *api.BulkResponse) {
	cmd.Printf("✓ %d instance(s) %s\n", len(result.Succeeded), verb)
	if len(result.Failed) > 0 {
		cmd.Printf("✗ %d failed:\n", len(result.Failed))
		for id, msg := range result.Failed {
			cmd.Printf("  %d: %s\n", id, msg)
		}
	}
}

// Package query filters and paginates task records for the read APIs.
package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"taskplane/internal/task"
)

// Spec is the filter over a job's task records. Empty sets match everything.
type Spec struct {
	States []task.State `json:"task_states,omitempty"`
	Names  []string     `json:"names,omitempty"`
	Hosts  []string     `json:"hosts,omitempty"`
}

// Pagination bounds one page of results. Token is the opaque continuation
// token from a previous page; it wins over Offset when set.
type Pagination struct {
	Offset uint32 `json:"offset,omitempty"`
	Limit  uint32 `json:"limit,omitempty"`
	Token  string `json:"token,omitempty"`
}

// Result is one page plus the continuation token for the next one. An empty
// NextToken means the listing is exhausted.
type Result struct {
	Records   []*task.TaskInfo `json:"records"`
	Total     uint32           `json:"total"`
	NextToken string           `json:"next_token,omitempty"`
}

const defaultLimit = 100

// Run filters records by spec and returns the requested page, ordered by
// InstanceID ascending. Pagination consistency is best-effort: the token is
// an offset into the current filtered ordering, not a snapshot.
func Run(records map[uint32]*task.TaskInfo, spec Spec, page Pagination) (*Result, error) {
	offset := page.Offset
	if page.Token != "" {
		parsed, err := parseToken(page.Token)
		if err != nil {
			return nil, err
		}
		offset = parsed
	}
	limit := page.Limit
	if limit == 0 {
		limit = defaultLimit
	}

	matched := make([]*task.TaskInfo, 0, len(records))
	for _, info := range records {
		if matches(info, spec) {
			matched = append(matched, info)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].InstanceID < matched[j].InstanceID
	})

	total := uint32(len(matched))
	if offset >= total {
		// No matching records past the offset is an empty result, not an
		// error.
		return &Result{Records: []*task.TaskInfo{}, Total: total}, nil
	}

	end := offset + limit
	if end > total {
		end = total
	}

	result := &Result{Records: matched[offset:end], Total: total}
	if end < total {
		result.NextToken = formatToken(end)
	}
	return result, nil
}

func matches(info *task.TaskInfo, spec Spec) bool {
	if len(spec.States) > 0 {
		found := false
		for _, s := range spec.States {
			if info.Runtime.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(spec.Names) > 0 {
		// Tasks that never resolved a config carry no name to match on.
		if info.Config == nil {
			return false
		}
		found := false
		for _, sub := range spec.Names {
			if strings.Contains(info.Config.Name, sub) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(spec.Hosts) > 0 {
		found := false
		for _, h := range spec.Hosts {
			if info.Runtime.Host == h {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

func formatToken(offset uint32) string {
	return strconv.FormatUint(uint64(offset), 10)
}

func parseToken(token string) (uint32, error) {
	v, err := strconv.ParseUint(token, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed pagination token %q: %w", token, err)
	}
	return uint32(v), nil
}

package progress

import (
	"context"
	"strconv"
	"strings"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// NotApplicable is the progress value of tasks that do not track progress.
const NotApplicable = "n/a"

// Status is one progress report for a job.
type Status struct {
	TaskName string
	Progress string // "42.5%" or NotApplicable
}

// Percent parses Progress. ok is false for NotApplicable or malformed values.
func (s Status) Percent() (float64, bool) {
	p := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s.Progress), "%"))
	v, err := strconv.ParseFloat(p, 64)
	if err != nil {
		return 0, false
	}
	return min(max(v, 0), 100), true
}

// NotApplicable reports whether the task does not track progress.
func (s Status) NotApplicable() bool {
	return strings.EqualFold(strings.TrimSpace(s.Progress), NotApplicable)
}

// Poller fetches the status of a job. found is false while the job is not
// registered yet or after it has been cleaned up.
type Poller interface {
	Poll(ctx context.Context, jobID string) (status Status, found bool, err error)
}

// Querier runs a Cypher statement.
type Querier interface {
	Run(ctx context.Context, query string, params map[string]any) (*table.Table, error)
}

// QueryPoller polls with gds.listProgress (gds.beta.listProgress before 2.5).
type QueryPoller struct {
	Querier       Querier
	ServerVersion version.ServerVersion
}

// StatusQuery returns the progress query for v.
func StatusQuery(v version.ServerVersion) string {
	proc := "gds.listProgress"
	if v.Less(version.ListProgressGA) {
		proc = "gds.beta.listProgress"
	}
	return "CALL " + proc + "($job_id) YIELD taskName, progress RETURN taskName, progress LIMIT 1"
}

// Poll implements [Poller].
func (p QueryPoller) Poll(ctx context.Context, jobID string) (Status, bool, error) {
	res, err := p.Querier.Run(ctx, StatusQuery(p.ServerVersion), map[string]any{"job_id": jobID})
	if err != nil {
		if strings.Contains(err.Error(), "No task with job id") {
			return Status{}, false, nil
		}
		return Status{}, false, err
	}
	if res.Len() == 0 {
		return Status{}, false, nil
	}
	rec := res.Records()[0]
	task, _ := rec["taskName"].(string)
	prog, _ := rec["progress"].(string)
	return Status{TaskName: task, Progress: prog}, true, nil
}

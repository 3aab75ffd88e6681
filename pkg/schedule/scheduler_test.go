package schedule

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmatic/flowmatic/pkg/workflow"
)

type captureEnqueuer struct {
	mu       sync.Mutex
	requests []workflow.RunRequest
}

func (c *captureEnqueuer) Enqueue(_ context.Context, request workflow.RunRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, request)

	return nil
}

func (c *captureEnqueuer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.requests)
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name    string
		entry   Entry
		wantErr bool
	}{
		{"valid", Entry{CronExpr: "*/5 * * * *", WorkflowID: "wf-1"}, false},
		{"missing workflow", Entry{CronExpr: "* * * * *"}, true},
		{"missing cron", Entry{WorkflowID: "wf-1"}, true},
		{"bad cron", Entry{CronExpr: "not a cron", WorkflowID: "wf-1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSchedulerRejectsInvalidEntry(t *testing.T) {
	scheduler := NewScheduler(slog.Default(), &captureEnqueuer{})

	err := scheduler.Add(Entry{CronExpr: "nope", WorkflowID: "wf-1"})
	assert.Error(t, err)
}

func TestSchedulerFireEnqueuesRunRequest(t *testing.T) {
	enqueuer := &captureEnqueuer{}
	scheduler := NewScheduler(slog.Default(), enqueuer)

	scheduler.fire(Entry{
		CronExpr:    "* * * * *",
		WorkflowID:  "wf-1",
		UserID:      "user-1",
		TriggerData: map[string]any{"plan": "daily"},
	})

	require.Equal(t, 1, enqueuer.count())

	request := enqueuer.requests[0]
	assert.Equal(t, "wf-1", request.WorkflowID)
	assert.Equal(t, "user-1", request.UserID)
	assert.Equal(t, "schedule", request.TriggerType)
	assert.Equal(t, "daily", request.TriggerData["plan"])
	assert.NotEmpty(t, request.TriggerData["timestamp"])
}

func TestSchedulerTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("cron tick test waits for a whole second boundary")
	}

	enqueuer := &captureEnqueuer{}
	scheduler := NewScheduler(slog.Default(), enqueuer)

	// robfig/cron's seconds-less spec fires at most once a minute, too
	// slow for a test; register through the underlying schedule parser
	// via fire instead and just verify Start/Stop bracketing.
	require.NoError(t, scheduler.Add(Entry{CronExpr: "* * * * *", WorkflowID: "wf-1"}))

	scheduler.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.NoError(t, scheduler.Stop(ctx))
}

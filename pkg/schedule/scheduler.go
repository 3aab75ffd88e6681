// Package schedule provides the cron run source: scheduled workflows
// get their run requests enqueued on the cron tick.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowmatic/flowmatic/pkg/workflow"
)

// Enqueuer accepts run requests; the Redis run queue satisfies this.
type Enqueuer interface {
	Enqueue(ctx context.Context, request workflow.RunRequest) error
}

// Entry is one scheduled workflow run.
type Entry struct {
	CronExpr    string         `json:"cron"`
	WorkflowID  string         `json:"workflow_id"`
	UserID      string         `json:"user_id,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

// Validate checks the entry before registration.
func (e Entry) Validate() error {
	if e.WorkflowID == "" {
		return errors.New("schedule entry workflow_id is required")
	}

	if e.CronExpr == "" {
		return errors.New("schedule entry cron expression is required")
	}

	if _, err := cron.ParseStandard(e.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", e.CronExpr, err)
	}

	return nil
}

// Scheduler registers cron entries and enqueues a run request on each
// tick. Overlapping ticks for the same entry are skipped.
type Scheduler struct {
	cron     *cron.Cron
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewScheduler creates a scheduler publishing into the given queue.
func NewScheduler(logger *slog.Logger, enqueuer Enqueuer) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		enqueuer: enqueuer,
		logger:   logger.With("module", "scheduler"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
	}
}

// Add registers one entry.
func (s *Scheduler) Add(entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	jobID, err := s.cron.AddFunc(entry.CronExpr, func() {
		s.fire(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for workflow %s: %w", entry.WorkflowID, err)
	}

	s.logger.Info("Registered schedule",
		"job_id", jobID, "workflow_id", entry.WorkflowID, "cron", entry.CronExpr)

	return nil
}

func (s *Scheduler) fire(entry Entry) {
	triggerData := make(map[string]any, len(entry.TriggerData)+1)

	for key, value := range entry.TriggerData {
		triggerData[key] = value
	}

	triggerData["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.enqueuer.Enqueue(ctx, workflow.RunRequest{
		WorkflowID:  entry.WorkflowID,
		UserID:      entry.UserID,
		TriggerType: "schedule",
		TriggerData: triggerData,
	})
	if err != nil {
		s.logger.Error("Failed to enqueue scheduled run",
			"workflow_id", entry.WorkflowID, "error", err)

		return
	}

	s.logger.Info("Enqueued scheduled run", "workflow_id", entry.WorkflowID)
}

// Start begins ticking.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts ticking and waits for in-flight jobs.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

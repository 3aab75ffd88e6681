// Package queue provides the Redis-backed run queue: external callers
// (schedulers, webhook dispatchers, the API's async path) enqueue run
// requests and the runner daemon drains them into the executor.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/flowmatic/flowmatic/pkg/workflow"
)

// DefaultQueue is the Redis list run requests are pushed to.
const DefaultQueue = "flowmatic:runs"

// RunHandler processes one dequeued run request.
type RunHandler func(ctx context.Context, request workflow.RunRequest) error

// Config holds the Redis connection settings for the run queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// ConfigFromMap builds a Config from loosely typed settings, applying
// defaults for anything absent.
func ConfigFromMap(settings map[string]string) (Config, error) {
	config := Config{
		Addr:  settings["addr"],
		Queue: settings["queue"],
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	config.Password = settings["password"]

	if dbText := settings["db"]; dbText != "" {
		db, err := strconv.Atoi(dbText)
		if err != nil {
			return Config{}, fmt.Errorf("invalid db value %q: %w", dbText, err)
		}

		config.DB = db
	}

	return config, nil
}

// Source consumes run requests from a Redis list and hands them to a
// RunHandler. It can also enqueue, for producers sharing the config.
type Source struct {
	config  Config
	client  redis.UniversalClient
	handler RunHandler
	logger  *slog.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSource creates a run queue source. The connection is established
// on Start.
func NewSource(logger *slog.Logger, config Config) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Queue == "" {
		config.Queue = DefaultQueue
	}

	return &Source{
		config: config,
		stopCh: make(chan struct{}),
		logger: logger.With("module", "run_queue", "queue", config.Queue),
	}
}

// Start connects to Redis and begins draining the queue into handler.
func (s *Source) Start(ctx context.Context, handler RunHandler) error {
	if handler == nil {
		return errors.New("run queue handler is required")
	}

	s.handler = handler

	if err := s.connect(ctx); err != nil {
		return err
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) connect(ctx context.Context) error {
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.config.Addr,
		Password: s.config.Password,
		DB:       s.config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", s.config.Addr, "db", s.config.DB)

	return nil
}

// Enqueue pushes a run request onto the queue.
func (s *Source) Enqueue(ctx context.Context, request workflow.RunRequest) error {
	if s.client == nil {
		if err := s.connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode run request: %w", err)
	}

	if err := s.client.RPush(ctx, s.config.Queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue run request: %w", err)
	}

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Run queue consumer started")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Run queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping run queue consumer")

			return
		default:
			if err := s.poll(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Error processing run request", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Source) poll(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, time.Second, s.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop run request: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	request, err := DecodeRunRequest([]byte(result[1]))
	if err != nil {
		// Poison messages are dropped, not requeued.
		s.logger.WarnContext(ctx, "Dropping malformed run request", "error", err)

		return nil
	}

	if err := s.handler(ctx, request); err != nil {
		s.logger.ErrorContext(ctx, "Run request failed",
			"workflow_id", request.WorkflowID, "error", err)
	}

	return nil
}

// DecodeRunRequest parses a queued payload. The workflow id is the only
// required field; a missing trigger type defaults to "queue".
func DecodeRunRequest(payload []byte) (workflow.RunRequest, error) {
	var request workflow.RunRequest

	if err := json.Unmarshal(payload, &request); err != nil {
		return workflow.RunRequest{}, fmt.Errorf("malformed run request: %w", err)
	}

	if request.WorkflowID == "" {
		return workflow.RunRequest{}, errors.New("run request missing workflow_id")
	}

	if request.TriggerType == "" {
		request.TriggerType = "queue"
	}

	return request, nil
}

// Stop halts the consumer and closes the connection.
func (s *Source) Stop(ctx context.Context) error {
	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}

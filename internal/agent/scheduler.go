package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"anoa.com/forumboard/pkg/metrics"
	"github.com/robfig/cron/v3"
)

// Task is one unit of background work. Its error is logged, never returned
// to whoever submitted it.
type Task func(ctx context.Context) error

// Scheduler runs recurring agents on cron and one-off delayed tasks on their
// own goroutines. Every run gets a fresh context bounded by the task timeout
// and a panic boundary.
type Scheduler struct {
	cron        *cron.Cron
	agents      []Agent
	taskTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func NewScheduler(taskTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:        cron.New(),
		agents:      make([]Agent, 0),
		taskTimeout: taskTimeout,
		logger:      logger.With("component", "scheduler"),
	}
}

// RegisterAgent adds the agent and schedules it when it has a cron schedule.
func (s *Scheduler) RegisterAgent(agent Agent) error {
	s.agents = append(s.agents, agent)

	schedule := agent.GetSchedule()
	if schedule == "" {
		s.logger.Info("registered on-demand agent", "agent", agent.GetName())
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		if !s.track() {
			return
		}
		defer s.running.Done()
		_ = s.run(agent.GetName(), agent.Execute)
	})
	if err != nil {
		return fmt.Errorf("schedule agent %s: %w", agent.GetName(), err)
	}
	s.logger.Info("scheduled agent", "agent", agent.GetName(), "cron", schedule)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "agents", len(s.agents))
}

// Submit runs task once after delay. It never blocks; after Shutdown the task
// is dropped.
func (s *Scheduler) Submit(name string, delay time.Duration, task Task) {
	if !s.track() {
		metrics.ScheduledTasks.WithLabelValues("rejected").Inc()
		s.logger.Warn("scheduler is shut down, dropping task", "task", name)
		return
	}

	go func() {
		defer s.running.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			<-timer.C
		}
		_ = s.run(name, task)
	}()
}

func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.running.Add(1)
	return true
}

func (s *Scheduler) run(name string, task Task) (err error) {
	ctx := context.Background()
	if s.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.taskTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			metrics.ScheduledTasks.WithLabelValues("panicked").Inc()
			s.logger.Error("task panicked", "task", name, "panic", r, "stack", string(debug.Stack()))
			return
		}
		if err != nil {
			metrics.ScheduledTasks.WithLabelValues("failed").Inc()
			s.logger.Error("task failed", "task", name, "duration", time.Since(start), "error", err)
			return
		}
		metrics.ScheduledTasks.WithLabelValues("succeeded").Inc()
		s.logger.Debug("task finished", "task", name, "duration", time.Since(start))
	}()

	return task(ctx)
}

// RunAgentByName runs a registered agent now, on the caller's goroutine.
func (s *Scheduler) RunAgentByName(ctx context.Context, name string) error {
	for _, agent := range s.agents {
		if agent.GetName() == name {
			s.logger.Info("running agent on demand", "agent", name)
			return agent.Execute(ctx)
		}
	}
	return fmt.Errorf("agent %q not found", name)
}

func (s *Scheduler) GetRegisteredAgents() []string {
	names := make([]string, len(s.agents))
	for i, agent := range s.agents {
		names[i] = agent.GetName()
	}
	return names
}

// Shutdown stops cron and waits for every submitted task, including those
// still waiting out their delay. It returns ctx.Err() if ctx ends first.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

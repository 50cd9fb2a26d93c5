package background_tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	tickInterval = time.Second
	// maxExecutionHist is how many executions are kept per task.
	maxExecutionHist = 100
)

// Scheduler runs tasks when their triggers are ready, at most maxRunningTasks at a time.
type Scheduler struct {
	clock           clock.Clock
	tasks           map[int]*Task
	runningTasks    map[int]bool
	maxRunningTasks int
	lastTaskID      int
	mu              sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewScheduler(maxRunningTasks int, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		clock:           clk,
		tasks:           make(map[int]*Task),
		runningTasks:    make(map[int]bool),
		maxRunningTasks: maxRunningTasks,
	}
}

// AddTask registers task, enables it and starts its triggers from now.
func (s *Scheduler) AddTask(task *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = s.lastTaskID
	task.Enabled = true

	now := s.clock.Now()
	for _, trigger := range task.Triggers {
		trigger.Reset(now)
	}

	s.tasks[task.ID] = task
	s.lastTaskID++

	return task
}

func (s *Scheduler) RemoveTask(taskID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// Start checks triggers once per tick until ctx ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.clock.Ticker(tickInterval)

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runTasks(ctx)
			}
		}
	}()
}

// Stop ends the loop and waits for running tasks, whose context is cancelled.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.wg.Wait()
}

func (s *Scheduler) runTasks(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sortedTasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		sortedTasks = append(sortedTasks, task)
	}
	sort.Slice(sortedTasks, func(i, j int) bool {
		if sortedTasks[i].Priority != sortedTasks[j].Priority {
			return sortedTasks[i].Priority > sortedTasks[j].Priority
		}
		return sortedTasks[i].ID < sortedTasks[j].ID
	})

	now := s.clock.Now()
	for _, task := range sortedTasks {
		if !task.Enabled || s.runningTasks[task.ID] {
			continue
		}

		if len(task.Triggers) == 0 {
			delete(s.tasks, task.ID)
			continue
		}

		if s.runningCount() >= s.maxRunningTasks {
			return
		}

		for _, trigger := range task.Triggers {
			if trigger.IsReady(now) {
				trigger.Reset(now)
				s.runningTasks[task.ID] = true
				s.wg.Add(1)
				go s.runTask(ctx, task)
				break
			}
		}
	}
}

// runningCount expects s.mu to be held.
func (s *Scheduler) runningCount() int {
	count := 0
	for _, isRunning := range s.runningTasks {
		if isRunning {
			count++
		}
	}
	return count
}

func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	defer s.wg.Done()

	execution := Execution{StartedAt: s.clock.Now(), Status: StatusFailed}
	defer func() {
		execution.EndedAt = s.clock.Now()
		s.mu.Lock()
		task.ExecutionHist = append(task.ExecutionHist, execution)
		if n := len(task.ExecutionHist); n > maxExecutionHist {
			task.ExecutionHist = append([]Execution(nil), task.ExecutionHist[n-maxExecutionHist:]...)
		}
		s.runningTasks[task.ID] = false
		s.mu.Unlock()
	}()

	for i := 0; i <= task.RetryPolicy.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				execution.Error = ctx.Err().Error()
				return
			case <-s.clock.After(task.RetryPolicy.Delay):
			}
		}

		err := task.Function(ctx)
		if err == nil {
			execution.Status = StatusSuccess
			execution.Error = ""
			return
		}
		execution.Error = err.Error()
		zlog.Sugar().Warnf("task %q failed (attempt %d): %v", task.Name, i+1, err)
	}
}

// History returns a copy of the executions of taskID.
func (s *Scheduler) History(taskID int) []Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return nil
	}
	return append([]Execution(nil), task.ExecutionHist...)
}

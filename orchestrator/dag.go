// Package orchestrator runs dependent jobs under per-resource slot limits.
// Batch export uses it to bound concurrent encodes while serializing
// manifest writes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ResourceType names a pool of execution slots.
type ResourceType string

const (
	ResourceEncode ResourceType = "encode" // Decode+compose+encode pipelines
	ResourceIO     ResourceType = "io"     // Small file writes (sequential)
)

// ErrDependencyFailed marks tasks skipped because a dependency failed.
var ErrDependencyFailed = errors.New("dependency failed")

// Job is the work a task performs.
type Job interface {
	Run(ctx context.Context) error
	GetOutputPath() string
}

// Task represents a unit of work with dependencies and resource requirements
type Task struct {
	ID           string
	Job          Job
	Dependencies []string // IDs of tasks that must complete before this one
	Resource     ResourceType
	Status       TaskStatus
	Error        error
	Result       *TaskResult
	StartTime    time.Time
	EndTime      time.Time
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	TaskID     string
	OutputPath string
	Success    bool
	Error      error
	Elapsed    time.Duration
}

// TaskStatus represents the current state of a task
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskReady              // Dependencies met, waiting for resource
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ResourceConstraint defines limits for a resource type
type ResourceConstraint struct {
	Type     ResourceType
	MaxSlots int // Maximum concurrent tasks for this resource
}

// DAGOrchestrator manages task execution with dependencies and resource constraints
type DAGOrchestrator struct {
	tasks       map[string]*Task
	constraints map[ResourceType]int

	activeSlots map[ResourceType]int
	slotsMutex  sync.Mutex

	tasksMutex sync.RWMutex

	onProgress func(completed, total int, task *Task)
}

// NewDAGOrchestrator creates a new orchestrator with resource constraints.
// Limits below one are raised to one.
func NewDAGOrchestrator(constraints []ResourceConstraint) *DAGOrchestrator {
	limits := make(map[ResourceType]int, len(constraints))
	for _, c := range constraints {
		limits[c.Type] = max(c.MaxSlots, 1)
	}

	return &DAGOrchestrator{
		tasks:       make(map[string]*Task),
		constraints: limits,
		activeSlots: make(map[ResourceType]int),
	}
}

// AddTask adds a task to the orchestrator
func (o *DAGOrchestrator) AddTask(task *Task) error {
	if task.Job == nil {
		return fmt.Errorf("task %s has no job", task.ID)
	}

	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	if _, exists := o.tasks[task.ID]; exists {
		return fmt.Errorf("task %s already exists", task.ID)
	}

	task.Status = TaskPending
	o.tasks[task.ID] = task
	return nil
}

// SetProgressCallback sets a callback invoked from the Execute goroutine
// each time a task settles.
func (o *DAGOrchestrator) SetProgressCallback(callback func(completed, total int, task *Task)) {
	o.onProgress = callback
}

// Execute runs all tasks respecting dependencies and resource constraints.
// Failed tasks do not stop the run; their dependents fail with
// ErrDependencyFailed. When ctx is cancelled, tasks not yet started fail
// with the context error, running jobs are waited for, and ctx.Err() is
// returned alongside the results.
func (o *DAGOrchestrator) Execute(ctx context.Context) ([]*TaskResult, error) {
	if err := o.validateDAG(); err != nil {
		return nil, err
	}

	o.tasksMutex.RLock()
	total := len(o.tasks)
	o.tasksMutex.RUnlock()

	done := make(chan *Task, total)
	results := make([]*TaskResult, 0, total)
	running := 0

	settle := func(task *Task) {
		results = append(results, task.Result)
		if o.onProgress != nil {
			o.onProgress(len(results), total, task)
		}
	}

	for len(results) < total {
		for _, task := range o.failBlocked(ctx) {
			settle(task)
		}

		for _, task := range o.getReadyTasks() {
			if !o.tryAcquireResource(task.Resource) {
				continue
			}
			o.markRunning(task)
			running++
			go o.executeTask(ctx, task, done)
		}

		if len(results) == total {
			break
		}
		if running == 0 {
			return results, fmt.Errorf("scheduler stalled with %d unfinished tasks", total-len(results))
		}

		task := <-done
		running--
		o.releaseResource(task.Resource)
		settle(task)
	}

	return results, ctx.Err()
}

// failBlocked fails waiting tasks whose dependencies failed, or every
// waiting task once ctx is done.
func (o *DAGOrchestrator) failBlocked(ctx context.Context) []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	var failed []*Task
	for _, task := range o.sortedTasks() {
		if task.Status != TaskPending && task.Status != TaskReady {
			continue
		}

		var err error
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case o.hasFailedDependency(task):
			err = ErrDependencyFailed
		default:
			continue
		}

		task.Status = TaskFailed
		task.Error = err
		task.Result = &TaskResult{
			TaskID:     task.ID,
			OutputPath: task.Job.GetOutputPath(),
			Error:      err,
		}
		failed = append(failed, task)
	}
	return failed
}

// getReadyTasks promotes pending tasks whose dependencies completed and
// returns every ready task ordered by ID.
func (o *DAGOrchestrator) getReadyTasks() []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	var ready []*Task
	for _, task := range o.sortedTasks() {
		if task.Status == TaskPending && o.dependenciesMet(task) {
			task.Status = TaskReady
		}
		if task.Status == TaskReady {
			ready = append(ready, task)
		}
	}
	return ready
}

func (o *DAGOrchestrator) sortedTasks() []*Task {
	list := make([]*Task, 0, len(o.tasks))
	for _, task := range o.tasks {
		list = append(list, task)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// dependenciesMet checks if all dependencies of a task are completed
func (o *DAGOrchestrator) dependenciesMet(task *Task) bool {
	for _, depID := range task.Dependencies {
		if dep, ok := o.tasks[depID]; !ok || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// hasFailedDependency checks if any direct or transitive dependency has failed
func (o *DAGOrchestrator) hasFailedDependency(task *Task) bool {
	for _, depID := range task.Dependencies {
		if dep, ok := o.tasks[depID]; ok {
			if dep.Status == TaskFailed || o.hasFailedDependency(dep) {
				return true
			}
		}
	}
	return false
}

// tryAcquireResource attempts to acquire a resource slot
func (o *DAGOrchestrator) tryAcquireResource(resourceType ResourceType) bool {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	limit, constrained := o.constraints[resourceType]
	if constrained && o.activeSlots[resourceType] >= limit {
		return false
	}
	o.activeSlots[resourceType]++
	return true
}

// releaseResource releases a resource slot
func (o *DAGOrchestrator) releaseResource(resourceType ResourceType) {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	if o.activeSlots[resourceType] > 0 {
		o.activeSlots[resourceType]--
	}
}

// ActiveSlots returns how many tasks currently hold a slot of resourceType.
func (o *DAGOrchestrator) ActiveSlots(resourceType ResourceType) int {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()
	return o.activeSlots[resourceType]
}

func (o *DAGOrchestrator) markRunning(task *Task) {
	o.tasksMutex.Lock()
	task.Status = TaskRunning
	task.StartTime = time.Now()
	o.tasksMutex.Unlock()
}

// executeTask runs a single task and reports it on done
func (o *DAGOrchestrator) executeTask(ctx context.Context, task *Task, done chan<- *Task) {
	err := task.Job.Run(ctx)

	o.tasksMutex.Lock()
	task.EndTime = time.Now()
	task.Result = &TaskResult{
		TaskID:     task.ID,
		OutputPath: task.Job.GetOutputPath(),
		Success:    err == nil,
		Error:      err,
		Elapsed:    task.EndTime.Sub(task.StartTime),
	}
	if err != nil {
		task.Status = TaskFailed
		task.Error = err
	} else {
		task.Status = TaskCompleted
	}
	o.tasksMutex.Unlock()

	done <- task
}

// validateDAG checks that every dependency exists and there are no cycles
func (o *DAGOrchestrator) validateDAG() error {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	for _, task := range o.tasks {
		for _, depID := range task.Dependencies {
			if _, exists := o.tasks[depID]; !exists {
				return fmt.Errorf("task %s depends on non-existent task %s", task.ID, depID)
			}
		}
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var hasCycle func(taskID string) bool
	hasCycle = func(taskID string) bool {
		visited[taskID] = true
		onStack[taskID] = true
		for _, depID := range o.tasks[taskID].Dependencies {
			if onStack[depID] || (!visited[depID] && hasCycle(depID)) {
				return true
			}
		}
		onStack[taskID] = false
		return false
	}

	for taskID := range o.tasks {
		if !visited[taskID] && hasCycle(taskID) {
			return fmt.Errorf("cycle detected in task dependencies")
		}
	}
	return nil
}

// GetTaskStatus returns the status of a task
func (o *DAGOrchestrator) GetTaskStatus(taskID string) (TaskStatus, error) {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	task, exists := o.tasks[taskID]
	if !exists {
		return TaskPending, fmt.Errorf("task %s not found", taskID)
	}
	return task.Status, nil
}

// Stats counts tasks per status.
type Stats struct {
	Total, Pending, Ready, Running, Completed, Failed int
}

// GetStats returns execution statistics
func (o *DAGOrchestrator) GetStats() Stats {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	s := Stats{Total: len(o.tasks)}
	for _, task := range o.tasks {
		switch task.Status {
		case TaskPending:
			s.Pending++
		case TaskReady:
			s.Ready++
		case TaskRunning:
			s.Running++
		case TaskCompleted:
			s.Completed++
		case TaskFailed:
			s.Failed++
		}
	}
	return s
}

package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/volumetric/engine/core"
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

/**
 * @brief A fixed pool of workers running JobTasks. Each volumetric
 * context is driven by one job per frame, so contexts render concurrently
 * while every single context stays on one goroutine at a time.
 */
type JobSystem struct {
	numWorkers int
	jobQueue   chan metadata.JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = errors.New("job system is shut down")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan metadata.JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job metadata.JobTask) {
	out := make(chan any, metadata.MAX_JOB_RESULTS)
	err := job.OnStart(job.InputParams, out)
	close(out)

	if err != nil {
		core.LogError("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		results := make([]any, 0, len(out))
		for r := range out {
			results = append(results, r)
		}
		job.OnComplete(results)
	}

	// Call the completion callback if set
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

/**
 * @brief Shuts the job system down once queued jobs have run.
 */
func (js *JobSystem) Shutdown() error {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks
 * while the queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt metadata.JobTask) error {
	if jt.OnStart == nil {
		return fmt.Errorf("job %s has no entry point: %w", jt.Name, core.ErrInvalidParameter)
	}
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Runs every task and waits for all of them. The returned slice
 * holds each task's error at its index, nil for the ones that succeeded.
 */
func (js *JobSystem) RunAndWait(tasks []metadata.JobTask) []error {
	errs := make([]error, len(tasks))
	var done sync.WaitGroup
	for i := range tasks {
		task := tasks[i]
		failure := task.OnFailure
		task.OnFailure = func(err error) {
			errs[i] = err
			if failure != nil {
				failure(err)
			}
		}
		callback := task.OnCompletionCallback
		task.OnCompletionCallback = func() {
			if callback != nil {
				callback()
			}
			done.Done()
		}

		done.Add(1)
		if err := js.Submit(task); err != nil {
			errs[i] = err
			done.Done()
		}
	}
	done.Wait()
	return errs
}

package systems

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/vkcube/engine/core"
)

/**
 * @brief Describes a job to be run by the job system.
 */
type JobTask struct {
	/** @brief Used in log lines only. */
	Name string
	/** @brief Invoked on a worker goroutine. Required. */
	Run func() (interface{}, error)
	/** @brief Invoked with the result when Run succeeds. Optional. */
	OnComplete func(result interface{})
	/** @brief Invoked with the error when Run fails or panics. Optional. */
	OnFailure func(err error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	// pending counts submitted jobs that have not finished yet.
	pending sync.WaitGroup
	mutex   sync.RWMutex
	closed  bool
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
		jobQueue:   make(chan JobTask, channelSize),
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
				js.execute(job)
			}
		}()
	}
}

func (js *JobSystem) execute(job JobTask) {
	defer js.pending.Done()

	result, err := runJob(job)
	if err != nil {
		core.LogError("job %s failed: %s", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		job.OnComplete(result)
	}
}

// runJob turns a panicking job into a failed one so a worker never dies.
func runJob(job JobTask) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	if job.Run == nil {
		return nil, fmt.Errorf("job %s has no entry point", job.Name)
	}
	return job.Run()
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while the queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.closed {
		return ErrJobSystemClosed
	}
	js.pending.Add(1)
	js.jobQueue <- jt
	return nil
}

/**
 * @brief Blocks until every job submitted so far has finished, callbacks included.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

/**
 * @brief Shuts the job system down. Queued jobs still run.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	return nil
}

// Package scoring runs WAV decoding, onset detection, and grid scoring on
// a bounded pool of worker goroutines, draining a task channel the way the
// ambient audio pipeline drains its buffered work queue.
package scoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/easeverse/server/internal/apperr"
	"github.com/easeverse/server/internal/env"
	"github.com/easeverse/server/internal/grid"
	"github.com/easeverse/server/internal/metrics"
	"github.com/easeverse/server/internal/onset"
	"github.com/easeverse/server/internal/wav"
)

const (
	minTaskSeconds = 0.3
	maxTaskSeconds = 20.0
)

// Task is one scoring request: the raw WAV bytes (copied at submission,
// never aliased across the worker boundary) plus grid parameters.
type Task struct {
	ID          string
	WAV         []byte
	BPM         float64
	Kind        grid.Kind
	ToleranceMs float64
	MaxEvents   int
}

// Result is what a worker produces for a Task.
type Result struct {
	TaskID          string
	DurationSeconds float64
	Onsets          []onset.Onset
	Score           grid.Score
	Err             error
}

type job struct {
	task  Task
	reply chan Result
}

var nextSlot atomic.Uint64

// Pool runs tasks on a fixed number of worker goroutines. Crashed or
// timed-out workers are recreated, and tasks beyond the pending limit are
// rejected immediately rather than buffered.
type Pool struct {
	workerCount int
	queueLimit  int
	taskTimeout time.Duration

	pending atomic.Int64

	mu      sync.Mutex
	slots   []chan job
	closing chan struct{}
	wg      sync.WaitGroup
}

// NewPool builds and starts a pool sized per the EASEPOCKET_WORKER_COUNT
// and EASEPOCKET_WORKER_QUEUE_LIMIT environment variables, falling back to
// min(2, NumCPU) workers and a queue of 32.
func NewPool() *Pool {
	defaultWorkers := min(2, runtime.NumCPU())
	workerCount := min(4, max(1, env.Int("EASEPOCKET_WORKER_COUNT", defaultWorkers)))
	queueLimit := max(4, env.Int("EASEPOCKET_WORKER_QUEUE_LIMIT", 32))
	taskTimeout := env.DurationMs("EASEPOCKET_WORKER_TASK_TIMEOUT_MS", 15*time.Second)
	if taskTimeout < 2*time.Second {
		taskTimeout = 2 * time.Second
	}

	p := &Pool{
		workerCount: workerCount,
		queueLimit:  queueLimit,
		taskTimeout: taskTimeout,
		closing:     make(chan struct{}),
	}

	p.slots = make([]chan job, workerCount)
	for i := range workerCount {
		p.startSlot(i)
	}
	return p
}

func (p *Pool) startSlot(i int) {
	slot := make(chan job, 1)
	p.slots[i] = slot
	p.wg.Add(1)
	go p.run(i, slot)
}

// run drains a worker's job channel until the pool closes. If the worker
// goroutine panics mid-task, the in-flight task is rejected with an
// internal error and the slot is restarted with a fresh channel, so the
// waiting Submit returns immediately rather than waiting out its timeout.
func (p *Pool) run(i int, slot chan job) {
	var active *job

	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			metrics.ScoringWorkerRestarts.Inc()
			p.mu.Lock()
			if p.slots[i] == slot {
				p.startSlot(i)
			}
			p.mu.Unlock()
			// reject the in-flight task only after the replacement slot
			// is installed, so a caller unblocked by this reply can't
			// race a new submission onto the dead channel
			if active != nil {
				select {
				case active.reply <- Result{
					TaskID: active.task.ID,
					Err:    &apperr.WorkerTaskError{Code: apperr.CodeInternal, Message: "worker crashed"},
				}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-p.closing:
			return
		case j, ok := <-slot:
			if !ok {
				return
			}
			active = &j
			j.reply <- execute(j.task)
			active = nil
		}
	}
}

// Submit enqueues a task and blocks until a worker produces a result, the
// pending count is over the queue limit, or the per-task timeout elapses
// (which abandons the worker slot, starts a replacement, and returns a
// WorkerTaskError with CodeInternal).
func (p *Pool) Submit(ctx context.Context, task Task) Result {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.WAV = append([]byte(nil), task.WAV...)

	if int(p.pending.Load()) >= p.queueLimit {
		metrics.ScoringTasksTotal.WithLabelValues("queue_busy").Inc()
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeInternal, Message: "queue busy"}}
	}
	p.pending.Add(1)
	defer p.pending.Add(-1)

	metrics.ScoringQueueDepth.Inc()
	defer metrics.ScoringQueueDepth.Dec()

	reply := make(chan Result, 1)
	j := job{task: task, reply: reply}

	start := time.Now()
	timer := time.NewTimer(p.taskTimeout)
	defer timer.Stop()

	slotIdx, slot := p.pickSlot()
	select {
	case slot <- j:
	case <-timer.C:
		metrics.ScoringTasksTotal.WithLabelValues("timeout").Inc()
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeInternal, Message: "scoring timed out"}}
	case <-ctx.Done():
		return Result{TaskID: task.ID, Err: ctx.Err()}
	}

	select {
	case res := <-reply:
		metrics.ScoringTaskDuration.Observe(time.Since(start).Seconds())
		outcome := "ok"
		if res.Err != nil {
			outcome = "error"
		}
		metrics.ScoringTasksTotal.WithLabelValues(outcome).Inc()
		return res
	case <-timer.C:
		p.restartSlot(slotIdx, slot)
		metrics.ScoringTasksTotal.WithLabelValues("timeout").Inc()
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeInternal, Message: "scoring timed out"}}
	case <-ctx.Done():
		return Result{TaskID: task.ID, Err: ctx.Err()}
	}
}

// restartSlot abandons a slot whose worker is stuck mid-task and installs
// a fresh one. The abandoned goroutine finishes (or leaks with) its task;
// its reply lands in a buffered channel nobody reads.
func (p *Pool) restartSlot(i int, stale chan job) {
	metrics.ScoringWorkerRestarts.Inc()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots[i] == stale {
		p.startSlot(i)
	}
}

// pickSlot round-robins across worker slots.
func (p *Pool) pickSlot() (int, chan job) {
	n := nextSlot.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	i := int(n) % len(p.slots)
	return i, p.slots[i]
}

// Close stops the workers and waits for in-flight tasks to drain.
func (p *Pool) Close() {
	close(p.closing)
	p.wg.Wait()
}

// testHookBeforeExecute, when set, runs at the top of execute. Tests use
// it to inject worker crashes.
var testHookBeforeExecute func(Task)

// execute runs the full decode -> gate -> detect -> score pipeline for a
// task. It is also used directly (bypassing the pool) when scoring runs
// inline via EASEPOCKET_DISABLE_WORKER.
func execute(task Task) Result {
	if testHookBeforeExecute != nil {
		testHookBeforeExecute(task)
	}

	buf, err := wav.Decode(task.WAV)
	if err != nil {
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeInvalidAudio, Message: err.Error()}}
	}

	seconds := buf.DurationSeconds()
	if seconds < minTaskSeconds {
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeTooShort, Message: "audio too short to score"}}
	}
	if seconds > maxTaskSeconds {
		return Result{TaskID: task.ID, Err: &apperr.WorkerTaskError{Code: apperr.CodeTooLong, Message: "audio too long to score"}}
	}

	onsets := onset.Detect(buf.Samples, buf.SampleRate, onset.DefaultConfig())

	onsetsMs := make([]float64, len(onsets))
	conf := make([]float64, len(onsets))
	for i, o := range onsets {
		onsetsMs[i] = o.TMs
		conf[i] = o.Confidence
	}

	stepMs := grid.StepMsFor(task.BPM, task.Kind)
	score := grid.ScoreOnsets(task.Kind, onsetsMs, conf, stepMs, task.ToleranceMs, -1, task.MaxEvents)

	return Result{TaskID: task.ID, DurationSeconds: seconds, Onsets: onsets, Score: score}
}

// Inline runs a task synchronously on the caller's goroutine, used when
// EASEPOCKET_DISABLE_WORKER=true. The same duration gates apply.
func Inline(task Task) Result {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	return execute(task)
}

// Package schedule owns the submit/delay/poll/abort state machine for
// dispatching a run's selected instructions to a workcell.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/labops/runcontrol/internal/history"
	"github.com/labops/runcontrol/pkg/client"
	"github.com/labops/runcontrol/pkg/log"
)

// SchedulerAPI is the slice of the REST client the coordinator needs.
// client.SchedulesService satisfies it.
type SchedulerAPI interface {
	Submit(ctx context.Context, req client.SubmitRequest) (*client.SubmitResponse, error)
	Get(ctx context.Context, runID, requestID string) (*client.RequestStatus, error)
	Abort(ctx context.Context, runID, requestID string) error
}

// Notifier surfaces submission outcomes to the operator.
type Notifier interface {
	// Scheduled opens the confirmation surface after a successful
	// schedule, carrying the session the work landed on.
	Scheduled(sessionID string)
	// Failure shows a blocking error the operator must acknowledge.
	Failure(message string)
	// Notice shows a passive side-channel notification.
	Notice(message string)
}

// Downloads receives blob submission results for the operator to
// save.
type Downloads interface {
	Save(filename string, data []byte) error
}

// Recorder appends submissions to the dispatch audit trail.
// *history.Store satisfies it.
type Recorder interface {
	Append(rec history.Record) error
	Resolve(requestID string, outcome history.Outcome, message, sessionID string) error
}

// Config wires a coordinator to its collaborators. Notifier,
// Downloads, and Recorder may be nil.
type Config struct {
	RunID         string
	API           SchedulerAPI
	Notifier      Notifier
	Downloads     Downloads
	Recorder      Recorder
	PollInterval  time.Duration
	CountdownTick time.Duration
}

// Coordinator drives one run view's schedule requests through the
// ready/requesting/waiting/scheduling/aborting lifecycle. All
// transitions happen under one mutex; network round trips happen
// outside it and re-check the generation counter afterwards so a
// disposed coordinator's in-flight calls cannot move state.
type Coordinator struct {
	cfg    Config
	flight *singleFlight

	mu         sync.Mutex
	state      State
	generation uint64
	requestID  string
	sessionID  string
	timer      *countdown
	stopPoll   chan struct{}
	aborted    bool
	closed     bool
}

// New builds a coordinator in the ready state.
func New(cfg Config) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = time.Second
	}

	return &Coordinator{
		cfg:    cfg,
		flight: newSingleFlight(),
		state:  StateReady,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestID returns the id of the schedule request in flight, if any.
func (c *Coordinator) RequestID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestID
}

// SessionID returns the session the last successful schedule landed
// on.
func (c *Coordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Remaining returns how much of the pre-schedule delay is left.
func (c *Coordinator) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	return c.timer.Remaining()
}

// Submit sends a schedule request and advances the state machine on
// the response: blob results download and return to ready, accepted
// requests enter the delay countdown or go straight to polling, and
// rejections return to ready with the error surfaced to the caller.
// Warnings rejections come back as *client.WarningsError for the
// gate to intercept.
func (c *Coordinator) Submit(ctx context.Context, req client.SubmitRequest) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("coordinator is closed")
	}
	if c.state != StateReady {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot submit while %s", state)
	}
	c.state = StateRequesting
	c.aborted = false
	gen := c.generation
	c.mu.Unlock()

	log.Debug("submitting schedule request",
		"run", req.RunID,
		"workcell", req.WorkcellID,
		"instructions", len(req.InstructionIdxs),
		"force", req.Force,
	)

	resp, err := c.cfg.API.Submit(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation {
		return nil
	}

	if err != nil {
		c.state = StateReady

		var warnings *client.WarningsError
		if errors.As(err, &warnings) {
			log.Info("schedule request rejected with warnings",
				"run", req.RunID, "count", len(warnings.Warnings))
			c.append(req, "", history.OutcomeRejected, err.Error())
			return err
		}

		log.Error("schedule request failed", "run", req.RunID, "error", err)
		c.append(req, "", history.OutcomeFailed, err.Error())
		c.notifyFailure(err.Error())
		return err
	}

	if resp.Blob != nil {
		// integration workcells answer synchronously with an archive;
		// nothing to poll
		c.state = StateReady
		c.append(req, "", history.OutcomeBlob, resp.Blob.Filename)
		c.saveBlob(resp.Blob)
		return nil
	}

	accepted := resp.Accepted
	c.requestID = accepted.ScheduleRequest.ID
	c.append(req, c.requestID, history.OutcomeSubmitted, "")

	delay := time.Duration(accepted.ScheduleDelay * float64(time.Second))
	if delay > 0 {
		log.Info("schedule request accepted, delay pending",
			"request", c.requestID, "delay", delay)
		c.state = StateWaiting
		c.timer = startCountdown(delay, c.cfg.CountdownTick, func() {
			c.onCountdownElapsed(gen)
		})
		return nil
	}

	c.beginScheduling(gen)
	return nil
}

// Abort cancels the delay countdown and poll loop, then asks the
// backend to abandon the request. The state machine returns to ready
// whether or not the abort call succeeds; the call's outcome only
// drives a notification.
func (c *Coordinator) Abort(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("coordinator is closed")
	}
	if !c.state.Abortable() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("cannot abort while %s", state)
	}

	c.state = StateAborting
	c.aborted = true
	c.cancelTimerLocked()
	c.stopPollLocked()
	requestID := c.requestID
	c.requestID = ""
	c.mu.Unlock()

	err := c.cfg.API.Abort(ctx, c.cfg.RunID, requestID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.state = StateReady
	c.resolve(requestID, history.OutcomeAborted, "", "")

	if err != nil {
		log.Warn("abort call failed", "request", requestID, "error", err)
		c.notifyNotice("abort may not have reached the scheduler")
	} else {
		c.notifyNotice("schedule request aborted")
	}

	return nil
}

// Close disposes the coordinator: all timers stop and any in-flight
// network completion is suppressed. Safe to call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.generation++
	c.cancelTimerLocked()
	c.stopPollLocked()
	c.state = StateReady
}

func (c *Coordinator) onCountdownElapsed(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || gen != c.generation || c.state != StateWaiting || c.aborted {
		return
	}

	c.timer = nil
	c.beginScheduling(gen)
}

// beginScheduling requires c.mu held.
func (c *Coordinator) beginScheduling(gen uint64) {
	c.state = StateScheduling
	c.stopPoll = make(chan struct{})
	go c.pollLoop(c.requestID, gen, c.stopPoll)
}

// pollLoop issues one status request per interval through the
// single-flight slot. A tick that lands while the previous request is
// still in flight is dropped, never queued.
func (c *Coordinator) pollLoop(requestID string, gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !c.flight.TryAcquire() {
				continue
			}

			go func() {
				defer c.flight.Release()
				status, err := c.cfg.API.Get(context.Background(), c.cfg.RunID, requestID)
				c.handlePoll(gen, requestID, status, err)
			}()
		}
	}
}

func (c *Coordinator) handlePoll(gen uint64, requestID string, status *client.RequestStatus, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// an abort or terminal transition clears requestID, so a stale
	// in-flight poll for a previous request can never move state for
	// the one that replaced it
	if c.closed || gen != c.generation || c.state != StateScheduling || requestID != c.requestID {
		return
	}

	if err != nil {
		log.Error("schedule status poll failed", "request", requestID, "error", err)
		c.stopPollLocked()
		c.state = StateReady
		c.requestID = ""
		c.resolve(requestID, history.OutcomeFailed, err.Error(), "")
		c.notifyFailure("schedule status check failed: " + err.Error())
		return
	}

	if !status.Terminal() {
		return
	}

	c.stopPollLocked()
	c.state = StateReady
	c.requestID = ""

	switch status.Status {
	case "success":
		sessionID := ""
		if status.Result != nil {
			sessionID = status.Result.SessionID
		}
		c.sessionID = sessionID
		log.Info("schedule request succeeded", "request", requestID, "session", sessionID)
		c.resolve(requestID, history.OutcomeSuccess, "", sessionID)
		if c.cfg.Notifier != nil {
			c.cfg.Notifier.Scheduled(sessionID)
		}
	case "failed":
		message := "scheduling failed"
		if status.Result != nil && status.Result.Message != "" {
			message = status.Result.Message
		}
		log.Warn("schedule request failed", "request", requestID, "message", message)
		c.resolve(requestID, history.OutcomeFailed, message, "")
		c.notifyFailure(message)
	case "aborted":
		log.Info("schedule request aborted by backend", "request", requestID)
		c.resolve(requestID, history.OutcomeAborted, "", "")
	}
}

func (c *Coordinator) saveBlob(blob *client.Blob) {
	if c.cfg.Downloads == nil {
		return
	}
	if err := c.cfg.Downloads.Save(blob.Filename, blob.Data); err != nil {
		log.Error("failed to save schedule archive", "filename", blob.Filename, "error", err)
		c.notifyFailure("could not save " + blob.Filename)
		return
	}
	c.notifyNotice("saved " + blob.Filename)
}

func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

func (c *Coordinator) stopPollLocked() {
	if c.stopPoll != nil {
		close(c.stopPoll)
		c.stopPoll = nil
	}
}

func (c *Coordinator) append(req client.SubmitRequest, requestID string, outcome history.Outcome, message string) {
	if c.cfg.Recorder == nil {
		return
	}

	sessionID := ""
	if req.SessionID != nil {
		sessionID = *req.SessionID
	}

	err := c.cfg.Recorder.Append(history.Record{
		RunID:            c.cfg.RunID,
		RequestID:        requestID,
		WorkcellID:       req.WorkcellID,
		SessionID:        sessionID,
		InstructionCount: len(req.InstructionIdxs),
		Forced:           req.Force,
		Outcome:          outcome,
		Message:          message,
	})
	if err != nil {
		log.Warn("failed to record submission", "run", c.cfg.RunID, "error", err)
	}
}

func (c *Coordinator) resolve(requestID string, outcome history.Outcome, message, sessionID string) {
	if c.cfg.Recorder == nil || requestID == "" {
		return
	}
	if err := c.cfg.Recorder.Resolve(requestID, outcome, message, sessionID); err != nil {
		log.Warn("failed to resolve submission record", "request", requestID, "error", err)
	}
}

func (c *Coordinator) notifyFailure(message string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Failure(message)
	}
}

func (c *Coordinator) notifyNotice(message string) {
	if c.cfg.Notifier != nil {
		c.cfg.Notifier.Notice(message)
	}
}

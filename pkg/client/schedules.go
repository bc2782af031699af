package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"
)

// SubmitRequest carries everything the scheduling backend needs to
// compute a schedule for a subset of a run's instructions.
type SubmitRequest struct {
	RunID                         string  `json:"-"`
	InstructionIdxs               []int   `json:"instruction_idxs"`
	XHuman                        []int   `json:"x_human"`
	WorkcellID                    string  `json:"workcell"`
	SessionID                     *string `json:"session_id"` // nil = new session
	IsTestSubmission              bool    `json:"is_test_submission"`
	MaxScheduleTime               int     `json:"max_schedule_time"` // seconds
	TimeConstraintsAreSuggestions bool    `json:"time_constraints_are_suggestions"`
	ReserveDestinies              bool    `json:"reserve_destinies"`
	Force                         bool    `json:"force"`
	ServiceURL                    string  `json:"service_url,omitempty"`
}

// ScheduleRequest identifies an accepted asynchronous scheduling job.
type ScheduleRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Accepted is the payload for a submission the backend queued for
// scheduling after an optional pre-schedule delay.
type Accepted struct {
	ScheduleDelay   float64          `json:"schedule_delay"` // seconds
	ScheduleRequest *ScheduleRequest `json:"schedule_request"`
}

// Blob is a synchronous submission result: the backend packaged the
// work into a downloadable archive instead of scheduling it.
type Blob struct {
	Filename string
	Data     []byte
}

// SubmitResponse is a tagged result: exactly one of Blob or Accepted
// is set.
type SubmitResponse struct {
	Blob     *Blob
	Accepted *Accepted
}

// WarningsError is the structured soft-constraint rejection: a map of
// constraint name to human-readable description. It is resolvable by
// a forced resubmission.
type WarningsError struct {
	Warnings map[string]string
}

func (e *WarningsError) Error() string {
	names := make([]string, 0, len(e.Warnings))
	for name := range e.Warnings {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("schedule rejected with warnings: %s", strings.Join(names, ", "))
}

// RequestStatus reports where an asynchronous schedule request is in
// its lifecycle.
type RequestStatus struct {
	Status string         `json:"status"` // pending | success | failed | aborted
	Result *RequestResult `json:"result,omitempty"`
}

// RequestResult carries the terminal outcome detail.
type RequestResult struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Terminal reports whether the status will never change again.
func (r RequestStatus) Terminal() bool {
	switch r.Status {
	case "success", "failed", "aborted":
		return true
	}
	return false
}

// SchedulesService exposes schedule request operations.
type SchedulesService struct {
	client *Client
}

// Submit sends a schedule request. Three shapes come back: a blob
// download (integration workcells), an accepted schedule request with
// a pre-schedule delay, or a rejection. Soft-constraint rejections
// surface as *WarningsError; anything else is a hard failure.
func (s *SchedulesService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	endpoint := s.client.resolve(fmt.Sprintf(
		"%s/runs/%s/schedule", s.client.prefix(), req.RunID))

	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("submit schedule: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("submit schedule: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("submit schedule: %w", err)
	}

	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("submit schedule: %w", readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("submit schedule: %w", closeErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if warnings := parseWarnings(body); warnings != nil {
			return nil, &WarningsError{Warnings: warnings}
		}
		return nil, fmt.Errorf("submit schedule: request failed: %s", resp.Status)
	}

	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		return &SubmitResponse{Blob: &Blob{
			Filename: dispositionFilename(disposition),
			Data:     body,
		}}, nil
	}

	var accepted Accepted
	if err := json.Unmarshal(body, &accepted); err != nil {
		return nil, fmt.Errorf("submit schedule: %w", err)
	}
	if accepted.ScheduleRequest == nil || accepted.ScheduleRequest.ID == "" {
		return nil, errors.New("submit schedule: response missing schedule request")
	}

	return &SubmitResponse{Accepted: &accepted}, nil
}

// Get fetches the current status of a schedule request.
func (s *SchedulesService) Get(ctx context.Context, runID, requestID string) (*RequestStatus, error) {
	endpoint := s.client.resolve(fmt.Sprintf(
		"%s/runs/%s/schedule_requests/%s", s.client.prefix(), runID, requestID))

	var payload RequestStatus
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("get schedule request: %w", err)
	}

	return &payload, nil
}

// Abort asks the backend to abandon a schedule request. Callers treat
// this as best-effort.
func (s *SchedulesService) Abort(ctx context.Context, runID, requestID string) error {
	endpoint := s.client.resolve(fmt.Sprintf(
		"%s/runs/%s/schedule_requests/%s/abort", s.client.prefix(), runID, requestID))

	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, nil); err != nil {
		return fmt.Errorf("abort schedule request: %w", err)
	}

	return nil
}

func parseWarnings(body []byte) map[string]string {
	var payload struct {
		Warnings map[string]string `json:"warnings"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if len(payload.Warnings) == 0 {
		return nil
	}
	return payload.Warnings
}

// dispositionFilename extracts the filename from a content-disposition
// header, falling back to a timestamped default when the header is
// malformed.
func dispositionFilename(disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("schedule-%d.zip", time.Now().UTC().Unix())
}

package client

import (
	"context"
	"fmt"
	"net/http"
)

// SchedulerStats mirrors the scheduler statistics endpoint.
type SchedulerStats struct {
	QueueDepth           int     `json:"queue_depth"`
	ActiveRequests       int     `json:"active_requests"`
	AvgScheduleSeconds   float64 `json:"avg_schedule_seconds"`
	SuccessRate          float64 `json:"success_rate"`
	WorkcellsOnline      int     `json:"workcells_online"`
	LongestQueuedSeconds float64 `json:"longest_queued_seconds"`
}

// StatsService exposes scheduler statistics helpers.
type StatsService struct {
	client *Client
}

// Get fetches current scheduler statistics.
func (s *StatsService) Get(ctx context.Context) (*SchedulerStats, error) {
	endpoint := s.client.resolve("/scheduler/stats")

	var payload SchedulerStats
	if err := s.client.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, fmt.Errorf("fetch scheduler stats: %w", err)
	}

	return &payload, nil
}

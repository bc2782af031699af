package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labops/runcontrol/pkg/client"
)

// Bridge forwards collaborator callbacks into the Bubble Tea event
// loop. The coordinator and the stats poller fire from their own
// goroutines, possibly before the program has started; anything posted
// before Attach is buffered and flushed on attach.
type Bridge struct {
	mu      sync.Mutex
	send    func(tea.Msg)
	backlog []tea.Msg
}

// NewBridge builds an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach connects the bridge to a running program's Send and flushes
// any buffered messages.
func (b *Bridge) Attach(send func(tea.Msg)) {
	b.mu.Lock()
	backlog := b.backlog
	b.backlog = nil
	b.send = send
	b.mu.Unlock()

	for _, msg := range backlog {
		send(msg)
	}
}

func (b *Bridge) post(msg tea.Msg) {
	b.mu.Lock()
	send := b.send
	if send == nil {
		b.backlog = append(b.backlog, msg)
	}
	b.mu.Unlock()

	if send != nil {
		send(msg)
	}
}

// Scheduled implements schedule.Notifier.
func (b *Bridge) Scheduled(sessionID string) {
	b.post(scheduledMsg{sessionID: sessionID})
}

// Failure implements schedule.Notifier.
func (b *Bridge) Failure(message string) {
	b.post(failureMsg{message: message})
}

// Notice implements schedule.Notifier.
func (b *Bridge) Notice(message string) {
	b.post(noticeMsg{message: message})
}

// ConfirmWarnings implements schedule.Confirmer.
func (b *Bridge) ConfirmWarnings(warnings map[string]string) {
	b.post(warningsMsg{warnings: warnings})
}

// AllInstructionsComplete implements completion.Notifier.
func (b *Bridge) AllInstructionsComplete() {
	b.post(allCompleteMsg{})
}

// StatsUpdated receives scheduler statistics from the poller.
func (b *Bridge) StatsUpdated(stats *client.SchedulerStats) {
	b.post(statsMsg{stats: stats})
}

type scheduledMsg struct {
	sessionID string
}

type failureMsg struct {
	message string
}

type noticeMsg struct {
	message string
}

type warningsMsg struct {
	warnings map[string]string
}

type allCompleteMsg struct{}

type statsMsg struct {
	stats *client.SchedulerStats
}

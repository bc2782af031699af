package app

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestBridgeBuffersUntilAttached(t *testing.T) {
	b := NewBridge()

	b.Scheduled("s1")
	b.Notice("saved archive")

	var received []tea.Msg
	b.Attach(func(msg tea.Msg) {
		received = append(received, msg)
	})

	if len(received) != 2 {
		t.Fatalf("expected 2 buffered messages, got %d", len(received))
	}
	if msg, ok := received[0].(scheduledMsg); !ok || msg.sessionID != "s1" {
		t.Fatalf("first message = %#v", received[0])
	}
	if msg, ok := received[1].(noticeMsg); !ok || msg.message != "saved archive" {
		t.Fatalf("second message = %#v", received[1])
	}
}

func TestBridgeForwardsAfterAttach(t *testing.T) {
	b := NewBridge()

	var received []tea.Msg
	b.Attach(func(msg tea.Msg) {
		received = append(received, msg)
	})

	b.Failure("no solution")
	b.ConfirmWarnings(map[string]string{"time_conflict": "too late"})
	b.AllInstructionsComplete()

	if len(received) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(received))
	}
	if msg, ok := received[0].(failureMsg); !ok || msg.message != "no solution" {
		t.Fatalf("first message = %#v", received[0])
	}
	if msg, ok := received[1].(warningsMsg); !ok || msg.warnings["time_conflict"] == "" {
		t.Fatalf("second message = %#v", received[1])
	}
	if _, ok := received[2].(allCompleteMsg); !ok {
		t.Fatalf("third message = %#v", received[2])
	}
}

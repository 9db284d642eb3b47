package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matelabs/mateview/internal/interview"
)

func TestManagerOpenGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s, err := m.Open("7", "0xabc", "javascript", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.InterviewID != "7" || got.Owner != "0xabc" || got.Status != StatusActive || got.Room != RoomIdle {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.ByInterview("7"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ByInterview after End error = %v, want ErrNotFound", err)
	}
}

func TestManagerOpenRejectsDuplicateInterview(t *testing.T) {
	m := NewManager(time.Minute)
	if _, err := m.Open("7", "0xabc", "javascript", nil); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, err := m.Open("7", "0xabc", "javascript", nil); !errors.Is(err, ErrInterviewOpen) {
		t.Fatalf("second Open() error = %v, want ErrInterviewOpen", err)
	}

	// A different interview is unaffected.
	if _, err := m.Open("8", "0xabc", "solidity", nil); err != nil {
		t.Fatalf("Open() for other interview error = %v", err)
	}
}

func TestManagerRoomTransitions(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Open("7", "0xabc", "javascript", nil)

	// Joining straight from idle is invalid.
	err := m.Join(s.ID)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("Join() from idle error = %v, want InvalidTransitionError", err)
	}

	if err := m.EnterLobby(s.ID); err != nil {
		t.Fatalf("EnterLobby() error = %v", err)
	}
	if err := m.Join(s.ID); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if got.Room != RoomJoined {
		t.Fatalf("Room = %q, want %q", got.Room, RoomJoined)
	}

	if err := m.Leave(s.ID); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	got, _ = m.Get(s.ID)
	if got.Room != RoomIdle {
		t.Fatalf("Room after Leave = %q, want %q", got.Room, RoomIdle)
	}
}

func TestManagerEnsureJoined(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Open("7", "0xabc", "javascript", nil)

	if err := m.EnsureJoined(s.ID); err != nil {
		t.Fatalf("EnsureJoined() error = %v", err)
	}
	got, _ := m.Get(s.ID)
	if got.Room != RoomJoined {
		t.Fatalf("Room = %q, want %q", got.Room, RoomJoined)
	}

	// Idempotent once joined.
	if err := m.EnsureJoined(s.ID); err != nil {
		t.Fatalf("EnsureJoined() second call error = %v", err)
	}
}

func TestManagerExchangeAndSaveGuards(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Open("7", "0xabc", "javascript", nil)

	if err := m.BeginExchange(s.ID); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("BeginExchange() before join error = %v, want ErrNotJoined", err)
	}
	if err := m.EnsureJoined(s.ID); err != nil {
		t.Fatalf("EnsureJoined() error = %v", err)
	}

	if err := m.BeginExchange(s.ID); err != nil {
		t.Fatalf("BeginExchange() error = %v", err)
	}
	if err := m.BeginExchange(s.ID); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("overlapping BeginExchange() error = %v, want ErrExchangeInFlight", err)
	}
	if err := m.BeginSave(s.ID); !errors.Is(err, ErrExchangeInFlight) {
		t.Fatalf("BeginSave() during exchange error = %v, want ErrExchangeInFlight", err)
	}
	m.EndExchange(s.ID)

	if err := m.BeginSave(s.ID); err != nil {
		t.Fatalf("BeginSave() error = %v", err)
	}
	if err := m.BeginSave(s.ID); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("overlapping BeginSave() error = %v, want ErrSaveInFlight", err)
	}
	if err := m.BeginExchange(s.ID); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("BeginExchange() during save error = %v, want ErrSaveInFlight", err)
	}
	m.EndSave(s.ID)

	if err := m.BeginExchange(s.ID); err != nil {
		t.Fatalf("BeginExchange() after save error = %v", err)
	}
}

func TestManagerMessagesSnapshot(t *testing.T) {
	m := NewManager(time.Minute)
	s, _ := m.Open("7", "0xabc", "javascript", []interview.Message{
		{ID: "7_0", Interview: "7", Role: interview.RoleSystem, Content: "prompt", Saved: true},
	})

	msgs, err := m.Messages(s.ID)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len(msgs) = %d, want 1", len(msgs))
	}

	// Mutating the snapshot must not leak into the session.
	msgs[0].Content = "tampered"
	again, _ := m.Messages(s.ID)
	if again[0].Content != "prompt" {
		t.Fatalf("session transcript mutated through snapshot")
	}

	next := append(msgs, interview.Message{ID: "7_100", Interview: "7", Timestamp: 100, Role: interview.RoleUser, Content: "hi"})
	if err := m.SetMessages(s.ID, next); err != nil {
		t.Fatalf("SetMessages() error = %v", err)
	}
	got, _ := m.Messages(s.ID)
	if len(got) != 2 {
		t.Fatalf("len after SetMessages = %d, want 2", len(got))
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s, _ := m.Open("7", "0xabc", "javascript", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
}

func TestManagerJanitorSkipsInFlight(t *testing.T) {
	m := NewManager(20 * time.Millisecond)
	s, _ := m.Open("7", "0xabc", "javascript", nil)
	if err := m.EnsureJoined(s.ID); err != nil {
		t.Fatalf("EnsureJoined() error = %v", err)
	}
	if err := m.BeginSave(s.ID); err != nil {
		t.Fatalf("BeginSave() error = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	m.expireInactive()

	got, _ := m.Get(s.ID)
	if got.Status != StatusActive {
		t.Fatalf("in-flight session expired, status = %q", got.Status)
	}

	m.EndSave(s.ID)
	time.Sleep(50 * time.Millisecond)
	m.expireInactive()
	got, _ = m.Get(s.ID)
	if got.Status != StatusEnded {
		t.Fatalf("settled session not expired, status = %q", got.Status)
	}
}

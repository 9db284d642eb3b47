package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matelabs/mateview/internal/interview"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrInterviewOpen    = errors.New("interview already has an open session")
	ErrExchangeInFlight = errors.New("an exchange is already in flight")
	ErrSaveInFlight     = errors.New("a save is already in flight")
	ErrNotJoined        = errors.New("session has not joined the room")
)

// Session is the exclusive owner of the in-memory transcript for one open
// interview. It is the capability object threaded into every operation that
// needs the viewer's identity; there is no ambient signer state.
type Session struct {
	ID             string    `json:"session_id"`
	InterviewID    string    `json:"interview_id"`
	Owner          string    `json:"owner"`
	TopicID        string    `json:"topic_id"`
	Status         Status    `json:"status"`
	Room           RoomState `json:"room"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	messages         []interview.Message
	exchangeInFlight bool
	saveInFlight     bool
}

// Messages returns a snapshot of the session transcript.
func (s *Session) Messages() []interview.Message {
	out := make([]interview.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

type Manager struct {
	mu                 sync.RWMutex
	sessions           map[string]*Session
	sessionByInterview map[string]string
	inactivityTimeout  time.Duration
	onExpire           func(*Session)
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:           make(map[string]*Session),
		sessionByInterview: make(map[string]string),
		inactivityTimeout:  inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

// Open creates the session owning the given interview's transcript. A
// second open for the same interview fails: the single-writer-per-interview
// discipline starts here.
func (m *Manager) Open(interviewID, owner, topicID string, messages []interview.Message) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		InterviewID:    interviewID,
		Owner:          owner,
		TopicID:        topicID,
		Status:         StatusActive,
		Room:           RoomIdle,
		StartedAt:      now,
		LastActivityAt: now,
		messages:       append([]interview.Message(nil), messages...),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessionByInterview[interviewID]; ok {
		if cur := m.sessions[existing]; cur != nil && cur.Status == StatusActive {
			return nil, ErrInterviewOpen
		}
	}
	m.sessions[s.ID] = s
	m.sessionByInterview[interviewID] = s.ID
	return clone(s), nil
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// ByInterview resolves the active session owning an interview, if any.
func (m *Manager) ByInterview(interviewID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.sessionByInterview[interviewID]
	if !ok {
		return nil, ErrNotFound
	}
	s, ok := m.sessions[id]
	if !ok || s.Status != StatusActive {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// SetMessages replaces the session's working transcript. Called only after
// an operation fully settled, so the list is never observed half-mutated.
func (m *Manager) SetMessages(sessionID string, messages []interview.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.messages = append([]interview.Message(nil), messages...)
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Messages returns a snapshot of a session's transcript.
func (m *Manager) Messages(sessionID string) ([]interview.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]interview.Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

func (m *Manager) EnterLobby(sessionID string) error {
	return m.transition(sessionID, enterLobby)
}

func (m *Manager) Join(sessionID string) error {
	return m.transition(sessionID, join)
}

func (m *Manager) Leave(sessionID string) error {
	return m.transition(sessionID, leave)
}

// EnsureJoined walks an idle session through the lobby into the room. Used
// by the plain HTTP surface where there is no explicit join handshake.
func (m *Manager) EnsureJoined(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Room == RoomJoined {
		return nil
	}
	if s.Room == RoomIdle {
		next, err := enterLobby(s.Room)
		if err != nil {
			return err
		}
		s.Room = next
	}
	next, err := join(s.Room)
	if err != nil {
		return err
	}
	s.Room = next
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) transition(sessionID string, step func(RoomState) (RoomState, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	next, err := step(s.Room)
	if err != nil {
		return err
	}
	s.Room = next
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// BeginExchange reserves the single exchange slot for a session. The caller
// must call EndExchange once the exchange settles, success or failure.
func (m *Manager) BeginExchange(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Room != RoomJoined {
		return ErrNotJoined
	}
	if s.exchangeInFlight {
		return ErrExchangeInFlight
	}
	if s.saveInFlight {
		return ErrSaveInFlight
	}
	s.exchangeInFlight = true
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) EndExchange(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.exchangeInFlight = false
	}
}

// BeginSave reserves the single save slot for a session. A save may not
// overlap an exchange: it must run against the most recent transcript.
func (m *Manager) BeginSave(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Room != RoomJoined {
		return ErrNotJoined
	}
	if s.exchangeInFlight {
		return ErrExchangeInFlight
	}
	if s.saveInFlight {
		return ErrSaveInFlight
	}
	s.saveInFlight = true
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) EndSave(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.saveInFlight = false
	}
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	s.Status = StatusEnded
	s.Room = RoomIdle
	s.LastActivityAt = time.Now().UTC()
	if cur, ok := m.sessionByInterview[s.InterviewID]; ok && cur == s.ID {
		delete(m.sessionByInterview, s.InterviewID)
	}
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Session

	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Status != StatusActive {
			continue
		}
		// An in-flight operation keeps the session alive; its result still
		// needs an owner to land on.
		if s.exchangeInFlight || s.saveInFlight {
			continue
		}
		if now.Sub(s.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.Room = RoomIdle
		s.LastActivityAt = now
		expired = append(expired, clone(s))
		if cur, ok := m.sessionByInterview[s.InterviewID]; ok && cur == s.ID {
			delete(m.sessionByInterview, s.InterviewID)
		}
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	c.messages = append([]interview.Message(nil), s.messages...)
	return &c
}

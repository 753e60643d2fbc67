package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/skillgate/plugin/ai"
	"github.com/hrygo/skillgate/plugin/ai/history"
)

// Session is one conversation. Its turn lock serializes Chat calls so the
// transcript grows in order.
type Session struct {
	ID        string
	CreatedAt time.Time

	turn sync.Mutex

	mu        sync.RWMutex
	messages  []ai.Message
	lastSkill string
	updatedAt time.Time
}

func newSession(id, systemPrompt string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
		messages:  []ai.Message{history.System(systemPrompt)},
	}
}

// Messages returns a copy of the canonical transcript.
func (s *Session) Messages() []ai.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ai.Message(nil), s.messages...)
}

// LastSkill returns the skill of the most recent routed turn.
func (s *Session) LastSkill() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSkill
}

// UpdatedAt returns the time of the last completed turn.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

func (s *Session) commit(messages []ai.Message, skillName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = messages
	if skillName != "" {
		s.lastSkill = skillName
	}
	s.updatedAt = time.Now()
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	TurnCount    int       `json:"turn_count"`
	LastSkill    string    `json:"last_skill,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Info returns the listing view of the session.
func (s *Session) Info() SessionInfo {
	msgs := s.Messages()
	return SessionInfo{
		ID:           s.ID,
		MessageCount: len(msgs),
		TurnCount:    history.CountTurns(msgs),
		LastSkill:    s.LastSkill(),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt(),
	}
}

// sessionStore is the mutex-guarded set of live conversations.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

// getOrCreate returns the session for id, creating it when missing. An empty
// id gets a fresh short UUID.
func (s *sessionStore) getOrCreate(id, systemPrompt string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = shortuuid.New()
	}
	if sess, ok := s.sessions[id]; ok {
		return sess
	}
	sess := newSession(id, systemPrompt)
	s.sessions[id] = sess
	return sess
}

func (s *sessionStore) get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// expire drops sessions idle since before cutoff and returns how many.
func (s *sessionStore) expire(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *sessionStore) list() []SessionInfo {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

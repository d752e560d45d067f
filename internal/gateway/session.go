package gateway

import (
	"hash/fnv"
	"strconv"
	"sync"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RolePlayer Role = "player"
	RoleNPC    Role = "npc"
)

// Turn is one utterance in a conversation, append-only.
type Turn struct {
	Role Role
	Text string
}

// Session tracks the conversation with a single NPC. The remote service
// keys its own state on ID, so the ID must stay stable for the lifetime
// of the process.
type Session struct {
	NPCName   string
	ServiceID string
	ID        string

	mu    sync.Mutex
	turns []Turn
}

// newSession derives the stable session ID from the service-side NPC id
// and a hash of the display name, truncated to 20 bytes.
func newSession(npcName, serviceID string) *Session {
	h := fnv.New32a()
	h.Write([]byte(npcName))
	id := serviceID + "_" + strconv.FormatUint(uint64(h.Sum32()), 10)
	if len(id) > 20 {
		id = id[:20]
	}
	return &Session{NPCName: npcName, ServiceID: serviceID, ID: id}
}

func (s *Session) append(role Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text})
}

// History returns a copy of the turns recorded so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// sessionStore lazily creates one [Session] per NPC display name.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*Session)}
}

func (st *sessionStore) get(npcName, serviceID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[npcName]; ok {
		return s
	}
	s := newSession(npcName, serviceID)
	st.sessions[npcName] = s
	return s
}

package answer

import "sync"

type sessionKey struct {
	interviewID string
	userID      string
	question    int
}

// Registry holds the live answer sessions, one per (interview, user,
// question index). Sessions are created lazily and dropped when their
// interview is deleted.
type Registry struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[sessionKey]*Session)}
}

// GetOrCreate returns the session for the key, creating it with create
// on first use.
func (r *Registry) GetOrCreate(interviewID, userID string, question int, create func() *Session) *Session {
	key := sessionKey{interviewID: interviewID, userID: userID, question: question}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := create()
	r.sessions[key] = s
	return s
}

// DropInterview removes every session belonging to an interview.
func (r *Registry) DropInterview(interviewID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.sessions {
		if key.interviewID == interviewID {
			delete(r.sessions, key)
		}
	}
}

package bot

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// Interactive flows (pick a service, then maybe supply a second argument) are
// modeled as short-lived sessions keyed by chat+user. A session walks
// stageChoice -> stageName -> done; cancel or TTL expiry aborts it.

type flowKind int

const (
	flowHistory flowKind = iota
	flowSettings
	flowToggle
	flowSetName
)

type flowStage int

const (
	stageChoice flowStage = iota
	stageName
)

type session struct {
	kind  flowKind
	stage flowStage
	nonce string

	keys       []string // choice index -> service key
	serviceKey string   // resolved service (stageName)
	limit      int      // history flow only

	promptChat int64 // choice prompt message, cleaned up on expiry
	promptMsg  int

	created time.Time
}

type sessionKey struct {
	chat int64
	user int64
}

type expiredSession struct {
	key sessionKey
	s   *session
}

// sessionStore is an in-memory TTL map. A janitor sweep (run by the bot)
// expires abandoned prompts instead of scanning on every access.
type sessionStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[sessionKey]*session
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &sessionStore{ttl: ttl, m: map[sessionKey]*session{}}
}

// put installs s for key, returning any session it replaced.
func (st *sessionStore) put(key sessionKey, s *session) *session {
	st.mu.Lock()
	defer st.mu.Unlock()
	old := st.m[key]
	s.created = time.Now()
	st.m[key] = s
	return old
}

func (st *sessionStore) get(key sessionKey) (*session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.m[key]
	if !ok {
		return nil, false
	}
	if time.Since(s.created) > st.ttl {
		delete(st.m, key)
		return nil, false
	}
	return s, true
}

func (st *sessionStore) delete(key sessionKey) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.m, key)
}

// sweep removes and returns all expired sessions.
func (st *sessionStore) sweep(now time.Time) []expiredSession {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []expiredSession
	for k, s := range st.m {
		if now.Sub(s.created) > st.ttl {
			out = append(out, expiredSession{key: k, s: s})
			delete(st.m, k)
		}
	}
	return out
}

// newNonce guards callbacks against stale keyboards: a button from a replaced
// prompt carries the old nonce and is answered with "expired".
func newNonce() string {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// Package session holds who is logged in on the client and the flows that
// change it.
package session

import "sync"

// User is the authenticated resident as the client sees it
type User struct {
	ID          int64  `json:"id"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Role        string `json:"role"`
	ApartmentID *int64 `json:"apartmentId,omitempty"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

// Snapshot is the state delivered to subscribers
type Snapshot struct {
	User       *User
	IsLoggedIn bool
}

// State is the observable session: the current user and whether someone is
// logged in. Create one per session and pass it to whoever needs it.
type State struct {
	mu   sync.RWMutex
	user *User

	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

func NewState() *State {
	return &State{subs: make(map[int]func(Snapshot))}
}

// User returns a copy of the current user, or nil
func (s *State) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsLoggedIn is true exactly when a user is set
func (s *State) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// SetUser replaces the user; nil logs out
func (s *State) SetUser(u *User) {
	s.mu.Lock()
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
	s.mu.Unlock()

	s.publish()
}

// Clear drops the user
func (s *State) Clear() {
	s.SetUser(nil)
}

// Snapshot returns the current state
func (s *State) Snapshot() Snapshot {
	u := s.User()
	return Snapshot{User: u, IsLoggedIn: u != nil}
}

// Subscribe calls fn after every change until cancel is called. fn runs on
// the goroutine that made the change.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *State) publish() {
	snap := s.Snapshot()

	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

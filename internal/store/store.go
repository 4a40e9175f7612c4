// Package store holds global application state: the theme slice, the user
// identity slice, and a transient notification slice. Theme and identity are
// the only slices persisted across runs.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FahimFBA/crowdcredit/internal/domain"
	"github.com/FahimFBA/crowdcredit/internal/logging"
)

// ThemeMode is the display theme.
type ThemeMode string

const (
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// Notice is one transient user-facing notification. Notices are rebuilt
// fresh each run and never persisted.
type Notice struct {
	Kind        string    `json:"kind"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Snapshot is a point-in-time copy of the persisted slices.
type Snapshot struct {
	Theme    ThemeMode       `json:"mode"`
	Identity domain.Identity `json:"user"`
}

// Listener observes state changes.
type Listener func(Snapshot)

// Subscription detaches a listener.
type Subscription interface {
	Unsubscribe()
}

// Store is the process-wide state store.
type Store struct {
	mu        sync.RWMutex
	theme     ThemeMode
	identity  domain.Identity
	notices   []Notice
	listeners map[string]Listener

	persist *persistence
	log     *logging.Logger
}

// Options configure the store.
type Options struct {
	// StatePath is the JSON file holding the persisted slices. Empty
	// disables persistence.
	StatePath string
	Logger    *logging.Logger
}

// New creates a store, loading the persisted theme and identity slices when
// a state file exists.
func New(opts Options) *Store {
	log := opts.Logger
	if log == nil {
		log = logging.New("store")
	}

	s := &Store{
		theme:     ThemeLight,
		listeners: make(map[string]Listener),
		log:       log,
	}
	if opts.StatePath != "" {
		s.persist = &persistence{path: opts.StatePath}
		if snap, err := s.persist.load(); err != nil {
			log.WithError(err).Warn("could not load persisted state, starting fresh")
		} else if snap != nil {
			if snap.Theme != "" {
				s.theme = snap.Theme
			}
			s.identity = snap.Identity
		}
	}
	return s
}

// Theme returns the current theme mode.
func (s *Store) Theme() ThemeMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme switches the theme mode.
func (s *Store) SetTheme(mode ThemeMode) {
	s.mu.Lock()
	s.theme = mode
	s.mu.Unlock()
	s.changed()
}

// Identity returns the current user identity; the zero value means
// signed out.
func (s *Store) Identity() domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// LoginSuccess projects a signed-in user into the identity slice. The
// profile picture is preserved across repeated sign-in events for the same
// user.
func (s *Store) LoginSuccess(uid, email string) {
	s.mu.Lock()
	if s.identity.UID != uid {
		s.identity.ProfilePicture = ""
	}
	s.identity.UID = uid
	s.identity.Email = email
	s.mu.Unlock()
	s.changed()
}

// LogoutSuccess clears the identity slice to its empty form.
func (s *Store) LogoutSuccess() {
	s.mu.Lock()
	s.identity = domain.Identity{}
	s.mu.Unlock()
	s.changed()
}

// SetProfilePicture records the signed profile-picture URL on the identity.
func (s *Store) SetProfilePicture(url string) {
	s.mu.Lock()
	s.identity.ProfilePicture = url
	s.mu.Unlock()
	s.changed()
}

// PushNotice appends a transient notification.
func (s *Store) PushNotice(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.At.IsZero() {
		n.At = time.Now()
	}
	s.notices = append(s.notices, n)
}

// Notices returns a copy of the transient notifications.
func (s *Store) Notices() []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// Snapshot returns the current persisted slices.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Theme: s.theme, Identity: s.identity}
}

// Subscribe registers a listener invoked after every state change.
func (s *Store) Subscribe(fn Listener) Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.listeners[id] = fn
	return &storeSubscription{store: s, id: id}
}

type storeSubscription struct {
	store *Store
	id    string
}

func (sub *storeSubscription) Unsubscribe() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	delete(sub.store.listeners, sub.id)
}

// changed persists the durable slices and notifies listeners.
func (s *Store) changed() {
	snap := s.Snapshot()

	if s.persist != nil {
		if err := s.persist.save(snap); err != nil {
			s.log.WithError(err).Error("persist state")
		}
	}

	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

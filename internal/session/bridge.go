// Package session projects backend auth-state notifications into the global
// identity slice.
package session

import (
	"github.com/FahimFBA/crowdcredit/internal/logging"
	"github.com/FahimFBA/crowdcredit/internal/store"
	"github.com/FahimFBA/crowdcredit/supabase/client"
)

// Bridge is a pure projector: a session with a user becomes {uid, email} in
// the identity slice, anything else clears it. Event delivery is owned by
// the auth client; the bridge has no retry or failure handling of its own.
type Bridge struct {
	auth  *client.AuthClient
	store *store.Store
	sub   client.Subscription
	log   *logging.Logger
}

// NewBridge creates a bridge. Call Start to attach its single listener.
func NewBridge(auth *client.AuthClient, st *store.Store, log *logging.Logger) *Bridge {
	if log == nil {
		log = logging.New("session")
	}
	return &Bridge{auth: auth, store: st, log: log}
}

// Start registers exactly one listener with the auth client. Calling Start
// twice replaces the previous registration.
func (b *Bridge) Start() {
	if b.sub != nil {
		b.sub.Unsubscribe()
	}
	b.sub = b.auth.OnAuthStateChange(b.project)
}

// Stop deregisters the listener.
func (b *Bridge) Stop() {
	if b.sub != nil {
		b.sub.Unsubscribe()
		b.sub = nil
	}
}

func (b *Bridge) project(event client.AuthEvent, session *client.Session) {
	if session != nil && session.User != nil && session.User.ID != "" {
		b.store.LoginSuccess(session.User.ID, session.User.Email)
		b.log.WithField("event", string(event)).Debug("identity projected")
		return
	}
	b.store.LogoutSuccess()
	b.log.WithField("event", string(event)).Debug("identity cleared")
}

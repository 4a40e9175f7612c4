// Package notify renders transient user-facing feedback for the auth
// mutation lifecycle. It observes the mutation topic on the event bus; it
// has no state of its own beyond the currently visible toast.
package notify

import (
	"context"

	"github.com/FahimFBA/crowdcredit/internal/events"
	"github.com/FahimFBA/crowdcredit/internal/logging"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/internal/store"
)

// ToastKind is the visual flavor of a toast.
type ToastKind string

const (
	ToastLoading ToastKind = "loading"
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast is one rendered notification.
type Toast struct {
	Kind        ToastKind
	Message     string
	Description string
}

// Toaster renders toasts. Exactly one toast is visible at a time; Show
// replaces whatever is currently visible.
type Toaster interface {
	Show(t Toast)
	Dismiss()
}

// ToastContent lets a mutation payload supply the success toast text.
type ToastContent interface {
	ToastMessage() (message, description string)
}

// messages are the fixed toast texts per watched endpoint.
type messages struct {
	pending     Toast
	fulfilled   Toast
	rejected    Toast
	payloadText bool // success text comes from the payload
	errText     bool // error description comes from the error
}

// Endpoint names watched by the notifier. They match the names the auth
// endpoint group publishes lifecycle events under.
const (
	EndpointLogout                 = "userAuth/logout"
	EndpointSetNewPassword         = "userAuth/setNewPassword"
	EndpointSendResetPasswordEmail = "userAuth/sendResetPasswordEmail"
	EndpointSendEmailLinkSignin    = "userAuth/sendEmailLinkSignin"
	EndpointEmailSignup            = "userAuth/emailSignup"
	EndpointEmailLogin             = "userAuth/emailLogin"
)

var watched = map[string]messages{
	EndpointLogout: {
		pending:   Toast{Kind: ToastLoading, Message: "Logging out...", Description: "Please wait a moment..."},
		fulfilled: Toast{Kind: ToastSuccess, Message: "Logged out successfully", Description: "Please login Again to use app"},
		rejected:  Toast{Kind: ToastError, Message: "Error logging out"},
		errText:   true,
	},
	EndpointSetNewPassword: {
		pending:   Toast{Kind: ToastLoading, Message: "Setting new password...", Description: "Please wait a moment..."},
		fulfilled: Toast{Kind: ToastSuccess, Message: "Password reset successful"},
		rejected: Toast{
			Kind:        ToastError,
			Message:     "Password reset unsuccessful",
			Description: "This password has already been used, please select a different one.",
		},
	},
	EndpointSendResetPasswordEmail: {
		pending:     Toast{Kind: ToastLoading, Message: "Checking Database...", Description: "Please wait a moment..."},
		fulfilled:   Toast{Kind: ToastSuccess},
		rejected:    Toast{Kind: ToastError, Message: "Error sending password reset email"},
		payloadText: true,
		errText:     true,
	},
	EndpointSendEmailLinkSignin: {
		pending:   Toast{Kind: ToastLoading, Message: "Sending Email Login Link...", Description: "Please wait a moment..."},
		fulfilled: Toast{Kind: ToastSuccess, Message: "Email Login Link sent successfully", Description: "Please check your email"},
		rejected:  Toast{Kind: ToastError, Message: "Error sending Email Login Link"},
		errText:   true,
	},
	EndpointEmailSignup: {
		pending:   Toast{Kind: ToastLoading, Message: "Creating user account..", Description: "Please wait a moment..."},
		fulfilled: Toast{Kind: ToastSuccess, Message: "Account created, please check email"},
		rejected:  Toast{Kind: ToastError, Message: "Error signing up!"},
		errText:   true,
	},
	EndpointEmailLogin: {
		pending:   Toast{Kind: ToastLoading, Message: "Logging in to user account..", Description: "Please wait a moment..."},
		fulfilled: Toast{Kind: ToastSuccess, Message: "Logged in successfully"},
		rejected:  Toast{Kind: ToastError, Message: "Error logging in"},
		errText:   true,
	},
}

// Notifier subscribes to the mutation lifecycle topic and renders toasts.
type Notifier struct {
	toaster Toaster
	sub     events.Subscription
	log     *logging.Logger
}

// New creates a notifier rendering through toaster.
func New(toaster Toaster, log *logging.Logger) *Notifier {
	if log == nil {
		log = logging.New("notify")
	}
	return &Notifier{toaster: toaster, log: log}
}

// Attach subscribes the notifier to the bus.
func (n *Notifier) Attach(bus *events.Bus) error {
	sub, err := bus.Subscribe(query.TopicMutation, n.handle)
	if err != nil {
		return err
	}
	n.sub = sub
	return nil
}

// Detach unsubscribes from the bus.
func (n *Notifier) Detach() {
	if n.sub != nil {
		n.sub.Unsubscribe()
		n.sub = nil
	}
}

func (n *Notifier) handle(ctx context.Context, event events.Event) error {
	lifecycle, ok := event.Data.(query.Lifecycle)
	if !ok {
		return nil
	}
	msgs, ok := watched[lifecycle.Endpoint]
	if !ok {
		return nil
	}

	var toast Toast
	switch lifecycle.Phase {
	case query.PhasePending:
		toast = msgs.pending
	case query.PhaseFulfilled:
		toast = msgs.fulfilled
		if msgs.payloadText {
			if content, ok := lifecycle.Payload.(ToastContent); ok {
				toast.Message, toast.Description = content.ToastMessage()
			}
		}
	case query.PhaseRejected:
		toast = msgs.rejected
		if msgs.errText && lifecycle.Err != nil {
			toast.Description = lifecycle.Err.Error()
		}
	default:
		return nil
	}

	// One visible toast per lifecycle: dismiss before showing the next.
	n.toaster.Dismiss()
	n.toaster.Show(toast)
	return nil
}

// StoreToaster renders toasts into the transient notification slice and the
// application log.
type StoreToaster struct {
	store *store.Store
	log   *logging.Logger
}

// NewStoreToaster creates a toaster backed by the state store.
func NewStoreToaster(st *store.Store, log *logging.Logger) *StoreToaster {
	if log == nil {
		log = logging.New("toast")
	}
	return &StoreToaster{store: st, log: log}
}

// Show records the toast.
func (t *StoreToaster) Show(toast Toast) {
	t.store.PushNotice(store.Notice{
		Kind:        string(toast.Kind),
		Message:     toast.Message,
		Description: toast.Description,
	})
	t.log.WithField("kind", string(toast.Kind)).Info(toast.Message)
}

// Dismiss is a no-op for the store-backed toaster; the notice log keeps
// history while the UI shows only the latest.
func (t *StoreToaster) Dismiss() {}

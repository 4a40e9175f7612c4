package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FahimFBA/crowdcredit/internal/events"
	"github.com/FahimFBA/crowdcredit/internal/query"
	"github.com/FahimFBA/crowdcredit/internal/store"
)

// recordingToaster records Show and Dismiss calls in order.
type recordingToaster struct {
	calls  []string
	toasts []Toast
}

func (r *recordingToaster) Show(t Toast) {
	r.calls = append(r.calls, "show")
	r.toasts = append(r.toasts, t)
}

func (r *recordingToaster) Dismiss() {
	r.calls = append(r.calls, "dismiss")
}

type payloadWithText struct {
	title, desc string
}

func (p payloadWithText) ToastMessage() (string, string) { return p.title, p.desc }

func publishLifecycle(t *testing.T, bus *events.Bus, l query.Lifecycle) {
	t.Helper()
	require.NoError(t, bus.Publish(context.Background(), query.TopicMutation, l.Endpoint, l))
}

func newAttached(t *testing.T) (*events.Bus, *recordingToaster) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	toaster := &recordingToaster{}
	n := New(toaster, nil)
	require.NoError(t, n.Attach(bus))
	t.Cleanup(n.Detach)
	return bus, toaster
}

func TestNotifier_LogoutSequence(t *testing.T) {
	bus, toaster := newAttached(t)

	publishLifecycle(t, bus, query.Lifecycle{Endpoint: EndpointLogout, Phase: query.PhasePending})
	publishLifecycle(t, bus, query.Lifecycle{Endpoint: EndpointLogout, Phase: query.PhaseFulfilled})

	require.Len(t, toaster.toasts, 2)
	assert.Equal(t, ToastLoading, toaster.toasts[0].Kind)
	assert.Equal(t, "Logging out...", toaster.toasts[0].Message)
	assert.Equal(t, ToastSuccess, toaster.toasts[1].Kind)
	assert.Equal(t, "Logged out successfully", toaster.toasts[1].Message)
	assert.Equal(t, "Please login Again to use app", toaster.toasts[1].Description)

	// every toast replaces the previous one
	assert.Equal(t, []string{"dismiss", "show", "dismiss", "show"}, toaster.calls)
}

func TestNotifier_RejectedCarriesErrorText(t *testing.T) {
	bus, toaster := newAttached(t)

	publishLifecycle(t, bus, query.Lifecycle{
		Endpoint: EndpointEmailLogin,
		Phase:    query.PhaseRejected,
		Err:      errors.New("invalid login credentials"),
	})

	require.Len(t, toaster.toasts, 1)
	assert.Equal(t, ToastError, toaster.toasts[0].Kind)
	assert.Equal(t, "Error logging in", toaster.toasts[0].Message)
	assert.Equal(t, "invalid login credentials", toaster.toasts[0].Description)
}

func TestNotifier_PasswordResetTextComesFromPayload(t *testing.T) {
	bus, toaster := newAttached(t)

	publishLifecycle(t, bus, query.Lifecycle{
		Endpoint: EndpointSendResetPasswordEmail,
		Phase:    query.PhaseFulfilled,
		Payload: payloadWithText{
			title: "Invitation sent to your email address",
			desc:  "Please check email and follow instructions.",
		},
	})

	require.Len(t, toaster.toasts, 1)
	assert.Equal(t, ToastSuccess, toaster.toasts[0].Kind)
	assert.Equal(t, "Invitation sent to your email address", toaster.toasts[0].Message)
	assert.Equal(t, "Please check email and follow instructions.", toaster.toasts[0].Description)
}

func TestNotifier_SetNewPasswordRejectionUsesFixedText(t *testing.T) {
	bus, toaster := newAttached(t)

	publishLifecycle(t, bus, query.Lifecycle{
		Endpoint: EndpointSetNewPassword,
		Phase:    query.PhaseRejected,
		Err:      errors.New("New password should be different from the old password"),
	})

	require.Len(t, toaster.toasts, 1)
	assert.Equal(t, "Password reset unsuccessful", toaster.toasts[0].Message)
	assert.Equal(t, "This password has already been used, please select a different one.", toaster.toasts[0].Description)
}

func TestNotifier_IgnoresUnwatchedEndpoints(t *testing.T) {
	bus, toaster := newAttached(t)

	publishLifecycle(t, bus, query.Lifecycle{
		Endpoint: "tableData/createCrowdFundingProject",
		Phase:    query.PhaseFulfilled,
	})

	assert.Empty(t, toaster.toasts)
}

func TestNotifier_DetachStopsToasts(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	toaster := &recordingToaster{}
	n := New(toaster, nil)
	require.NoError(t, n.Attach(bus))
	n.Detach()

	publishLifecycle(t, bus, query.Lifecycle{Endpoint: EndpointLogout, Phase: query.PhasePending})
	assert.Empty(t, toaster.toasts)
}

func TestStoreToaster_RecordsNotices(t *testing.T) {
	st := store.New(store.Options{})
	toaster := NewStoreToaster(st, nil)

	toaster.Show(Toast{Kind: ToastSuccess, Message: "Logged in successfully"})

	notices := st.Notices()
	require.Len(t, notices, 1)
	assert.Equal(t, "success", notices[0].Kind)
	assert.Equal(t, "Logged in successfully", notices[0].Message)
}

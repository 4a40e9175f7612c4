package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoginLogout(t *testing.T) {
	s := New(Options{})

	assert.True(t, s.Identity().IsEmpty())

	s.LoginSuccess("uid-1", "user@example.com")
	id := s.Identity()
	assert.Equal(t, "uid-1", id.UID)
	assert.Equal(t, "user@example.com", id.Email)
	assert.False(t, id.IsEmpty())

	s.LogoutSuccess()
	assert.True(t, s.Identity().IsEmpty())
	assert.Empty(t, s.Identity().Email)
}

func TestStore_ProfilePicturePreservedForSameUser(t *testing.T) {
	s := New(Options{})

	s.LoginSuccess("uid-1", "user@example.com")
	s.SetProfilePicture("https://cdn/signed-url")

	// a repeated sign-in event for the same user keeps the picture
	s.LoginSuccess("uid-1", "user@example.com")
	assert.Equal(t, "https://cdn/signed-url", s.Identity().ProfilePicture)

	// a different user starts clean
	s.LoginSuccess("uid-2", "other@example.com")
	assert.Empty(t, s.Identity().ProfilePicture)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New(Options{StatePath: path})
	s.SetTheme(ThemeDark)
	s.LoginSuccess("uid-1", "user@example.com")
	s.PushNotice(Notice{Kind: "success", Message: "Logged in successfully"})

	// the state file is namespaced under "root" with the slice key names the
	// client expects
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var file map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &file))
	require.Contains(t, file, "root")
	assert.Contains(t, file["root"], "mode")
	assert.Contains(t, file["root"], "user")

	// a fresh store rehydrates theme and identity but not notices
	fresh := New(Options{StatePath: path})
	assert.Equal(t, ThemeDark, fresh.Theme())
	assert.Equal(t, "uid-1", fresh.Identity().UID)
	assert.Empty(t, fresh.Notices())
}

func TestStore_CorruptStateFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := New(Options{StatePath: path})
	assert.Equal(t, ThemeLight, s.Theme())
	assert.True(t, s.Identity().IsEmpty())
}

func TestStore_SubscribeObservesChanges(t *testing.T) {
	s := New(Options{})

	var snaps []Snapshot
	sub := s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	s.SetTheme(ThemeDark)
	s.LoginSuccess("uid-1", "user@example.com")
	sub.Unsubscribe()
	s.LogoutSuccess()

	require.Len(t, snaps, 2)
	assert.Equal(t, ThemeDark, snaps[0].Theme)
	assert.Equal(t, "uid-1", snaps[1].Identity.UID)
}

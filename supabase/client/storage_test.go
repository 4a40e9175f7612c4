package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketClient_Upload(t *testing.T) {
	var gotPath, gotContentType, gotUpsert string
	var gotBody []byte
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	})

	err := c.Storage().From("Users").Upload(context.Background(), "uid-1/profile-picture",
		[]byte("image-bytes"), UploadOptions{ContentType: "image/*", Upsert: true})
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/Users/uid-1/profile-picture", gotPath)
	assert.Equal(t, "image/*", gotContentType)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, []byte("image-bytes"), gotBody)
}

func TestBucketClient_CreateSignedURL(t *testing.T) {
	var payload map[string]any
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/sign/Users/uid-1/profile-picture", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/Users/uid-1/profile-picture?token=abc"}`))
	})

	url, err := c.Storage().From("Users").CreateSignedURL(context.Background(),
		"uid-1/profile-picture", 600000, &Transform{Width: 350, Height: 350, Resize: "cover"})
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/storage/v1/object/sign/Users/uid-1/profile-picture?token=abc", url)
	assert.Equal(t, float64(600000), payload["expiresIn"])

	transform, ok := payload["transform"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(350), transform["width"])
	assert.Equal(t, float64(350), transform["height"])
	assert.Equal(t, "cover", transform["resize"])
}

func TestBucketClient_Remove(t *testing.T) {
	var payload map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/Users", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	})

	err := c.Storage().From("Users").Remove(context.Background(), []string{"uid-1/profile-picture"})
	require.NoError(t, err)
	assert.Equal(t, []string{"uid-1/profile-picture"}, payload["prefixes"])
}

func TestBucketClient_GetPublicURL(t *testing.T) {
	c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	url := c.Storage().From("Users").GetPublicURL("uid-1/profile-picture")
	assert.Equal(t, srv.URL+"/storage/v1/object/public/Users/uid-1/profile-picture", url)
}

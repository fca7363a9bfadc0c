package face

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteStoreEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/embed", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.NotEmpty(t, body["image_b64"])
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	vec, err := NewRemoteStore(srv.URL, time.Second).Embed(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, Vector{0.1, 0.2, 0.3}, vec)
}

func TestRemoteStoreEmbedNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "no_face_detected"})
	}))
	defer srv.Close()

	_, err := NewRemoteStore(srv.URL, time.Second).Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrNoFaceDetected)
}

func TestRemoteStoreEmbedInvalidImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_image"})
	}))
	defer srv.Close()

	_, err := NewRemoteStore(srv.URL, time.Second).Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestRemoteStoreLookupNotEnrolled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewRemoteStore(srv.URL, time.Second).Lookup(context.Background(), "22CS101")
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestRemoteStoreServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRemoteStore(srv.URL, time.Second).Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemoteStoreTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewRemoteStore(srv.URL, 100*time.Millisecond).Embed(context.Background(), []byte("img"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRemoteStoreDeleteMissingIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	assert.NoError(t, NewRemoteStore(srv.URL, time.Second).Delete(context.Background(), "22CS101"))
}

func TestRemoteStoreEnroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/enroll", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "22CS101", body["roll_no"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, NewRemoteStore(srv.URL, time.Second).Enroll(context.Background(), "22CS101", []byte("img")))
}

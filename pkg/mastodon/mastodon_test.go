package mastodon

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu           sync.Mutex
	auth         []string
	uploads      int
	description  string
	fileBytes    []byte
	polls        int
	pendingPolls int // GET /api/v1/media/{id} answers 206 this many times
	asyncUpload  bool
	statusFails  int // POST /api/v1/statuses answers 503 this many times
	statusCalls  int
	idemKeys     []string
	form         map[string][]string
	rejectStatus bool
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, code int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
	}
	mux.HandleFunc("POST /api/v2/media", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.uploads++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.description = r.FormValue("description")
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.fileBytes, _ = io.ReadAll(file) //nolint:errcheck // test server
		if f.asyncUpload {
			write(w, http.StatusAccepted, map[string]any{"id": "m1", "type": "image", "url": nil})
			return
		}
		write(w, http.StatusOK, map[string]any{"id": "m1", "type": "image", "url": "https://files.example/m1.jpg"})
	})
	mux.HandleFunc("GET /api/v1/media/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.polls++
		if f.polls <= f.pendingPolls {
			write(w, http.StatusPartialContent, map[string]any{"id": r.PathValue("id"), "url": nil})
			return
		}
		write(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "url": "https://files.example/m1.jpg"})
	})
	mux.HandleFunc("POST /api/v1/statuses", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.statusCalls++
		f.idemKeys = append(f.idemKeys, r.Header.Get("Idempotency-Key"))
		if f.rejectStatus {
			write(w, http.StatusUnprocessableEntity, map[string]string{"error": "Validation failed: Text can't be blank"})
			return
		}
		if f.statusCalls <= f.statusFails {
			write(w, http.StatusServiceUnavailable, map[string]string{"error": "busy"})
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.form = r.PostForm
		media := []map[string]any{}
		for _, id := range r.PostForm["media_ids[]"] {
			media = append(media, map[string]any{"id": id, "url": "https://files.example/" + id + ".jpg"})
		}
		write(w, http.StatusOK, map[string]any{
			"id":                "s1",
			"url":               "https://social.example/@bot/s1",
			"content":           "<p>" + r.PostForm.Get("status") + " <strong>now</strong></p>",
			"created_at":        "2024-07-04T20:20:00.000Z",
			"media_attachments": media,
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Credentials{Server: srv.URL + "/", AccessToken: "tok-123", ClientKey: "ck", ClientSecret: "cs"},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(3, time.Millisecond),
		WithPolling(time.Millisecond, 5*time.Second))
	require.NoError(t, err)
	return c
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.jpg")
	require.NoError(t, os.WriteFile(path, []byte("\xFF\xD8\xFFjpeg"), 0o600))
	return path
}

func TestPublishWithImage(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	st, err := c.Publish(context.Background(), Post{Text: "It's 4:20 in Lima", ImagePath: writeImage(t), Description: "A plaza at dusk."})
	require.NoError(t, err)

	assert.Equal(t, "s1", st.ID)
	assert.Equal(t, "It's 4:20 in Lima **now**", st.Text)
	require.Len(t, st.Media, 1)
	assert.Equal(t, "m1", st.Media[0].ID)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.uploads)
	assert.Equal(t, "A plaza at dusk.", f.description)
	assert.Equal(t, []byte("\xFF\xD8\xFFjpeg"), f.fileBytes)
	assert.Zero(t, f.polls, "synchronously processed media is not polled")
	assert.Equal(t, []string{"m1"}, f.form["media_ids[]"])
	assert.Equal(t, []string{"It's 4:20 in Lima"}, f.form["status"])
	for _, a := range f.auth {
		assert.Equal(t, "Bearer tok-123", a)
	}
}

func TestPublishWaitsForProcessing(t *testing.T) {
	f := &fakeServer{asyncUpload: true, pendingPolls: 2}
	c := newTestClient(t, f)

	_, err := c.Publish(context.Background(), Post{Text: "hi", ImagePath: writeImage(t)})
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 3, f.polls)
	assert.Equal(t, []string{"m1"}, f.form["media_ids[]"])
	assert.Empty(t, f.description)
}

func TestPublishTextOnly(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	st, err := c.Publish(context.Background(), Post{Text: "It's 4:20 in Oslo"})
	require.NoError(t, err)
	assert.Empty(t, st.Media)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Zero(t, f.uploads)
	assert.Empty(t, f.form["media_ids[]"])
}

func TestPublishRetryKeepsIdempotencyKey(t *testing.T) {
	f := &fakeServer{statusFails: 2}
	c := newTestClient(t, f)

	_, err := c.Publish(context.Background(), Post{Text: "hi"})
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.idemKeys, 3)
	assert.NotEmpty(t, f.idemKeys[0])
	assert.Equal(t, f.idemKeys[0], f.idemKeys[1])
	assert.Equal(t, f.idemKeys[0], f.idemKeys[2])
}

func TestPublishDistinctKeysPerPost(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)
	for range 2 {
		_, err := c.Publish(context.Background(), Post{Text: "hi"})
		require.NoError(t, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.idemKeys, 2)
	assert.NotEqual(t, f.idemKeys[0], f.idemKeys[1])
}

func TestPublishRejected(t *testing.T) {
	f := &fakeServer{rejectStatus: true}
	c := newTestClient(t, f)

	_, err := c.Publish(context.Background(), Post{Text: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Text can't be blank")
	assert.Equal(t, 1, f.statusCalls, "client errors are not retried")
}

func TestPublishMissingImage(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)
	_, err := c.Publish(context.Background(), Post{Text: "hi", ImagePath: filepath.Join(t.TempDir(), "gone.jpg")})
	require.Error(t, err)
	assert.Zero(t, f.statusCalls)
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"complete", Credentials{Server: "https://mastodon.social", AccessToken: "t"}, false},
		{"no server", Credentials{AccessToken: "t"}, true},
		{"no token", Credentials{Server: "https://mastodon.social"}, true},
		{"relative server", Credentials{Server: "mastodon.social", AccessToken: "t"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

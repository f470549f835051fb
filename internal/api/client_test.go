// internal/api/client_test.go
//
// Contract tests against an httptest server standing in for the backend.
//
// Run: go test ./internal/api -v

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/studyhub/internal/form"
)

var ref = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, 5*time.Second, nil)
	require.NoError(t, err)
	return c
}

func png(name string) form.File {
	return form.BytesFile(name, "image/png", []byte("\x89PNG\r\n\x1a\n"))
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New("ftp://example.com", time.Second, nil)
	require.Error(t, err)
}

func TestSubmit_PostCreateMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/post", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		for k, want := range map[string]string{
			"name": "Graph Theory", "topic": "Algorithms", "description": "Dijkstra and friends",
			"status": "Started", "tag": "cs", "createdAt": "2025-03-14", "userId": "42",
		} {
			assert.Equal(t, want, r.FormValue(k), k)
		}
		fh := r.MultipartForm.File["file"]
		require.Len(t, fh, 1)
		assert.Equal(t, "g.png", fh[0].Filename)
		assert.Equal(t, "image/png", fh[0].Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 7, "name": "Graph Theory"}`)
	})

	rcpt, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindPost, Mode: form.ModeCreate, ActorID: "42", RefDate: ref,
		Values: map[string]string{
			"name": "Graph Theory", "topic": "Algorithms", "description": "Dijkstra and friends",
			"status": "Started", "tag": "cs", "createdAt": "2025-03-14",
		},
		Files: map[string]form.FileChange{"image": {State: form.FileReplaced, New: []form.File{png("g.png")}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "7", rcpt.ID)
}

func TestSubmit_ProgressUpdateBundlesDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/progress/9", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("userId"))
		require.NoError(t, r.ParseMultipartForm(1<<20))

		var details map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("progress details")), &details))
		assert.Equal(t, "Sets", details["topic"])
		assert.Equal(t, "2025-03-14", details["updatedAt"])
		_, hasCreated := details["createdAt"]
		assert.False(t, hasCreated)
		assert.Empty(t, r.MultipartForm.File["file"], "unchanged image must not be re-uploaded")
		_, _ = io.WriteString(w, `{"id": 9}`)
	})

	_, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindProgress, Mode: form.ModeUpdate, RecordID: "9", ActorID: "42", RefDate: ref,
		Values: map[string]string{"name": "Ada", "topic": "Sets", "description": "Cardinality notes", "status": "Started"},
		Files:  map[string]form.FileChange{"image": {State: form.FileUnchanged, Kept: []string{"old.png"}}},
	})
	require.NoError(t, err)
}

func TestSubmit_BlogUpdateImages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blog/update/3", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Len(t, r.MultipartForm.File["newImages"], 2)

		var del []string
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("imagesToDelete")), &del))
		assert.Equal(t, []string{"a.png"}, del)
		assert.Equal(t, "documentary", r.FormValue("category"))
		_, _ = io.WriteString(w, `{"id": 3}`)
	})

	_, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindBlog, Mode: form.ModeUpdate, RecordID: "3", ActorID: "42",
		Values: map[string]string{"title": "Owls", "content": "Night birds", "author": "Ada", "category": "documentary"},
		Files: map[string]form.FileChange{"images": {
			State: form.FileReplaced, New: []form.File{png("b.png"), png("c.png")},
			Kept: []string{"d.png"}, Removed: []string{"a.png"},
		}},
	})
	require.NoError(t, err)
}

func TestSubmit_ProfileOmitsBlankPassword(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 42}`)
	})

	_, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindProfile, Mode: form.ModeUpdate, RecordID: "42", ActorID: "42",
		Values: map[string]string{"fullname": "Ada Lovelace", "email": "ada@example.com", "phone": "077", "password": ""},
	})
	require.NoError(t, err)
	assert.NotContains(t, got, "password")
	assert.Equal(t, "Ada Lovelace", got["fullname"])
}

func TestSubmit_ProfileKeepsPasswordAsTyped(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 42}`)
	})

	_, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindProfile, Mode: form.ModeUpdate, RecordID: "42", ActorID: "42",
		Values: map[string]string{"fullname": "Ada Lovelace", "email": "ada@example.com", "phone": "077", "password": "  secret99  "},
	})
	require.NoError(t, err)
	assert.Equal(t, "  secret99  ", got["password"])
}

func TestSubmit_RegisterPostsUser(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/user", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 43, "fullname": "Grace Hopper", "email": "grace@example.com"}`)
	})

	rcpt, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindRegister, Mode: form.ModeCreate,
		Values: map[string]string{"fullname": "Grace Hopper", "email": "grace@example.com", "phone": "0771234567", "password": "cobol59"},
	})
	require.NoError(t, err)
	assert.Equal(t, "43", rcpt.ID)
	assert.Equal(t, map[string]any{
		"fullname": "Grace Hopper", "email": "grace@example.com", "phone": "0771234567", "password": "cobol59",
	}, got)
}

func TestDelete_ProfileUsesUserRoute(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/user/42", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		_, _ = io.WriteString(w, "User account42deleted")
	})

	rcpt, err := c.Delete(context.Background(), form.KindProfile, "42", "42")
	require.NoError(t, err)
	assert.Equal(t, "User account42deleted", rcpt.Message)
}

func TestSubmit_LearningPlanMapsViews(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/users", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 5}`)
	})
	_, err := c.Submit(context.Background(), form.Submission{
		Kind: form.KindLearningPlan, Mode: form.ModeCreate,
		Values: map[string]string{"name": "Go", "email": "a@b.co", "videoLink": "https://v.io/1", "views": "12", "description": "Concurrency talk"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 12, got["age"])
	assert.Equal(t, "https://v.io/1", got["videoLink"])
}

func TestSubmit_ErrorMessages(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error key", 400, `{"error": "All fields are required"}`, "All fields are required"},
		{"json message key", 409, `{"message": "Duplicate"}`, "Duplicate"},
		{"plain text", 404, "Error: Post not found or not owned by user", "Error: Post not found or not owned by user"},
		{"html page", 502, "<html><body>Bad gateway</body></html>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.Submit(context.Background(), form.Submission{
				Kind: form.KindLearningPlan, Mode: form.ModeCreate, Values: map[string]string{"views": "1"},
			})
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.Status)
			assert.Equal(t, tc.want, apiErr.UserMessage())
			assert.Equal(t, tc.status == 404, errors.Is(err, ErrNotFound))
		})
	}
}

func TestFetch_MapsRecordAndDropsPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/user/42":
			_, _ = io.WriteString(w, `{"id": 42, "fullname": "Ada", "email": "ada@example.com", "phone": "077", "password": "hunter2"}`)
		case "/post/7":
			assert.Equal(t, "42", r.URL.Query().Get("userId"))
			_, _ = io.WriteString(w, `{"id": 7, "name": "Graphs", "createdAt": [2025, 3, 1], "updatedAt": "2025-03-02T10:00:00", "image": "1700_g.png"}`)
		case "/blog/get/3":
			_, _ = io.WriteString(w, `{"id": 3, "title": "Owls", "blogImages": ["a.png", "b.png"]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	prof, err := c.Fetch(ctx, form.KindProfile, "42", "42")
	require.NoError(t, err)
	assert.Equal(t, "Ada", prof.Values["fullname"])
	assert.NotContains(t, prof.Values, "password")

	post, err := c.Fetch(ctx, form.KindPost, "7", "42")
	require.NoError(t, err)
	assert.Equal(t, "7", post.ID)
	assert.Equal(t, "2025-03-01", post.Values["createdAt"])
	assert.Equal(t, "2025-03-02", post.Values["updatedAt"])
	assert.Equal(t, []string{"1700_g.png"}, post.Attachments["image"])

	blog, err := c.Fetch(ctx, form.KindBlog, "3", "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, blog.Attachments["images"])

	_, err = c.Fetch(ctx, form.KindLearningPlan, "99", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetch_SharesConcurrentRequests(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, `{"id": 1, "title": "Owls"}`)
	})

	const n = 4
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.Fetch(context.Background(), form.KindBlog, "1", "42")
			errs <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	assert.LessOrEqual(t, hits.Load(), int32(n))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestListAndDelete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/blog/user":
			assert.Equal(t, "42", r.URL.Query().Get("userId"))
			_, _ = io.WriteString(w, `[{"id": 1, "title": "A"}, {"id": 2, "title": "B"}]`)
		case r.Method == http.MethodDelete && r.URL.Path == "/post/7":
			assert.Equal(t, "42", r.URL.Query().Get("userId"))
			_, _ = io.WriteString(w, "Post deleted successfully")
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})
	ctx := context.Background()

	list, err := c.List(ctx, form.KindBlog, "42")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "B", list[1].Values["title"])

	rcpt, err := c.Delete(ctx, form.KindPost, "7", "42")
	require.NoError(t, err)
	assert.Equal(t, "Post deleted successfully", rcpt.Message)

	_, err = c.List(ctx, form.KindProfile, "42")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] == "right" {
			_, _ = io.WriteString(w, `{"success": true, "message": "Login successful", "id": "42"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"success": false, "message": "Invalid credentials"}`)
	})

	id, err := c.Login(context.Background(), "ada@example.com", "right")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	_, err = c.Login(context.Background(), "ada@example.com", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.UserMessage())
}

func TestClient_ImplementsFormBackendErrors(t *testing.T) {
	// A backend error must surface its message through form.SubmitError.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": "Title taken"}`)
	})
	form.MustLoadDefaults()
	ctl, err := form.NewController(form.Options{Kind: form.KindLearningPlan, Backend: c, RefDate: ref})
	require.NoError(t, err)
	for k, v := range map[string]string{
		"name": "Go Talk", "email": "a@b.co", "videoLink": "https://v.io/1", "views": "3", "description": "Concurrency patterns",
	} {
		ctl.Change(k, v)
	}
	_, err = ctl.Submit(context.Background())
	var se *form.SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, form.NetworkOrServerError, se.Kind)
	assert.Equal(t, "Title taken", se.Message)
}

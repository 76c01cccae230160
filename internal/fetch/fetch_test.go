package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/peerio/updater/internal/model"
)

// httpsServer wraps an httptest.Server in TLS so https-only checks pass
// without reaching out to a real CA.
func httpsServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewTLSServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func insecureFetcher(ts *httptest.Server) *Fetcher {
	f := New()
	f.client.Transport = ts.Client().Transport
	return f
}

func TestGetRejectsNonHTTPSInitialURL(t *testing.T) {
	t.Parallel()

	f := New()
	_, err := f.Get(context.Background(), "http://example.invalid/manifest.txt", "")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnsafeRedirect {
		t.Fatalf("expected UnsafeRedirect, got %v", err)
	}
}

func TestGetFollowsHTTPSRedirect(t *testing.T) {
	t.Parallel()

	var hits int32
	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/final":
			atomic.AddInt32(&hits, 1)
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	resp, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/start", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected /final to be hit once, got %d", hits)
	}
}

func TestGetTooManyRedirects(t *testing.T) {
	t.Parallel()

	var ts *httptest.Server
	ts = httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, ts.URL+"/loop", http.StatusFound)
	}))

	_, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/loop", "")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrTooManyRedirects {
		t.Fatalf("expected TooManyRedirects, got %v", err)
	}
}

func TestGetNotFoundDoesNotRetry(t *testing.T) {
	t.Parallel()

	var requests int32
	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/missing", "")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Fatalf("expected exactly one request for a 404, got %d", got)
	}
}

func TestGetRetriesTransientFailureThenSucceeds(t *testing.T) {
	t.Parallel()

	var attempts int32
	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	resp, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/flaky", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var attempts int32
	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/down", "")
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := atomic.LoadInt32(&attempts); got != MaxRetries+1 {
		t.Fatalf("expected %d total attempts, got %d", MaxRetries+1, got)
	}
}

func TestGetContentTypeMismatch(t *testing.T) {
	t.Parallel()

	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("not json"))
	}))

	_, err := insecureFetcher(ts).Get(context.Background(), ts.URL+"/thing", "application/json")
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrUnexpectedContentType {
		t.Fatalf("expected UnexpectedContentType, got %v", err)
	}
}

func TestFetchJSON(t *testing.T) {
	t.Parallel()

	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tag_name":"2.0.0"}`))
	}))

	var out struct {
		TagName string `json:"tag_name"`
	}
	if err := insecureFetcher(ts).FetchJSON(context.Background(), ts.URL+"/release", &out); err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if out.TagName != "2.0.0" {
		t.Fatalf("got tag %q", out.TagName)
	}
}

func TestFetchAllJSONPages(t *testing.T) {
	t.Parallel()

	pages := [][]string{{"a", "b"}, {"c"}, {"d", "e"}}
	var ts *httptest.Server
	ts = httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			page = 0
		}
		if page+1 < len(pages) {
			next := ts.URL + "/items?page=" + strconv.Itoa(page+1)
			w.Header().Set("Link", `<`+next+`>; rel="next"`)
		}
		w.Header().Set("Content-Type", "application/json")
		body := `["` + pages[page][0] + `"`
		for _, item := range pages[page][1:] {
			body += `,"` + item + `"`
		}
		body += `]`
		w.Write([]byte(body))
	}))

	got, err := insecureFetcher(ts).FetchAllJSONPages(context.Background(), ts.URL+"/items?page=0")
	if err != nil {
		t.Fatalf("FetchAllJSONPages: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 concatenated items across pages, got %d", len(got))
	}
}

func TestFetchFileCleansUpOnFailure(t *testing.T) {
	t.Parallel()

	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	dest := filepath.Join(t.TempDir(), "artifact.tmp")
	_, err := insecureFetcher(ts).FetchFile(context.Background(), ts.URL+"/missing", dest)
	if kind, ok := model.KindOf(err); !ok || kind != model.ErrNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("expected no partial file at %s", dest)
	}
}

func TestFetchFileWritesContent(t *testing.T) {
	t.Parallel()

	ts := httpsServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("artifact-bytes"))
	}))

	dest := filepath.Join(t.TempDir(), "artifact.bin")
	path, err := insecureFetcher(ts).FetchFile(context.Background(), ts.URL+"/artifact", dest)
	if err != nil {
		t.Fatalf("FetchFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(got) != "artifact-bytes" {
		t.Fatalf("got %q", got)
	}
}

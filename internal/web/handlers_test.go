package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankdugan3/typstflow/internal/cache"
	"github.com/frankdugan3/typstflow/pkg/engine/enginetest"
	"github.com/frankdugan3/typstflow/pkg/pipeline"
	"github.com/frankdugan3/typstflow/pkg/session"
)

func testRegistry(t *testing.T) *pipeline.Registry {
	t.Helper()
	deps := pipeline.Deps{Engine: enginetest.New()}
	reg := pipeline.NewRegistry()

	_, err := reg.Register(pipeline.RenderSpec{
		Name:     "cover",
		Format:   pipeline.FormatSVG,
		Template: pipeline.TemplateSpec{Name: "cover", Source: "= Cover"},
	}, deps)
	require.NoError(t, err)

	_, err = reg.Register(pipeline.RenderSpec{
		Name:     "invoice",
		Format:   pipeline.FormatPDF,
		Template: pipeline.TemplateSpec{Name: "invoice", Source: "= Invoice\n#pagebreak()\n= Detail"},
	}, deps)
	require.NoError(t, err)

	_, err = reg.Register(pipeline.RenderSpec{
		Name:     "broken",
		Format:   pipeline.FormatSVG,
		Template: pipeline.TemplateSpec{Name: "broken", Source: "= Broken " + enginetest.ErrorMarker},
	}, deps)
	require.NoError(t, err)

	return reg
}

func testRouter(t *testing.T, c *cache.Cache) http.Handler {
	t.Helper()
	return NewRouter(&Handler{
		Registry:     testRegistry(t),
		FontFamilies: func() []string { return []string{"Libertinus Serif"} },
		Cache:        c,
	})
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestFonts(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodGet, "/fonts", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"families": ["Libertinus Serif"]}`, rec.Body.String())
}

func TestListRenders(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodGet, "/renders", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"renders": ["broken", "cover", "invoice"]}`, rec.Body.String())
}

func TestRenderSVG(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodPost, "/renders/cover", map[string]any{
		"args": map[string]any{"title": "Q3"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Page-Count"))
	assert.Equal(t, "0", rec.Header().Get("X-Warning-Count"))
	assert.Contains(t, rec.Body.String(), "<svg>")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRenderPDF(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodPost, "/renders/invoice", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Page-Count"))
}

func TestRenderUnknownName(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodPost, "/renders/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown render")
}

func TestRenderCompileFailure(t *testing.T) {
	rec := doRequest(t, testRouter(t, nil), http.MethodPost, "/renders/broken", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error       string `json:"error"`
		Diagnostics []struct {
			Severity string `json:"severity"`
			Message  string `json:"message"`
		} `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "broken")
	require.Len(t, body.Diagnostics, 1)
	assert.Equal(t, "error", body.Diagnostics[0].Severity)
	assert.Contains(t, body.Diagnostics[0].Message, "unknown function")
}

func TestRenderMalformedBody(t *testing.T) {
	router := testRouter(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/renders/cover", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
}

func TestRenderCacheHit(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := cache.New(client, time.Minute)
	t.Cleanup(func() { c.Close() })

	router := testRouter(t, c)
	body := map[string]any{"args": map[string]any{"id": 1}}

	first := doRequest(t, router, http.MethodPost, "/renders/cover", body)
	require.Equal(t, http.StatusOK, first.Code)

	// Same args hit the cached entry and return the same bytes.
	second := doRequest(t, router, http.MethodPost, "/renders/cover", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))

	// Different args miss.
	other := doRequest(t, router, http.MethodPost, "/renders/cover", map[string]any{
		"args": map[string]any{"id": 2},
	})
	require.Equal(t, http.StatusOK, other.Code)

	keys := srv.Keys()
	assert.Len(t, keys, 2)

	// Failures are never cached.
	failed := doRequest(t, router, http.MethodPost, "/renders/broken", nil)
	require.Equal(t, http.StatusUnprocessableEntity, failed.Code)
	assert.Len(t, srv.Keys(), 2)
}

// recordingFetcher returns a record owned by the requesting actor and
// remembers who fetched.
type recordingFetcher struct {
	actors []string
}

func (f *recordingFetcher) FetchOne(ctx context.Context, q pipeline.Query) (any, bool, error) {
	f.actors = append(f.actors, q.Actor)
	return map[string]any{"owner": q.Actor}, true, nil
}

func (f *recordingFetcher) FetchMany(ctx context.Context, q pipeline.Query) (session.Cursor, error) {
	return session.NewSliceCursor(nil), nil
}

func TestRenderCacheIsolatesActors(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := cache.New(client, time.Minute)
	t.Cleanup(func() { c.Close() })

	fetcher := &recordingFetcher{}
	reg := pipeline.NewRegistry()
	_, err := reg.Register(pipeline.RenderSpec{
		Name:     "statement",
		Format:   pipeline.FormatSVG,
		Template: pipeline.TemplateSpec{Name: "statement", Source: "#import \"data.typ\": record\n= Statement"},
		Fetch:    &pipeline.FetchSpec{Kind: pipeline.FetchOne},
	}, pipeline.Deps{Engine: enginetest.New(), Fetcher: fetcher})
	require.NoError(t, err)

	router := NewRouter(&Handler{
		Registry:     reg,
		FontFamilies: func() []string { return nil },
		Cache:        c,
	})

	args := map[string]any{"id": 7}
	alice := doRequest(t, router, http.MethodPost, "/renders/statement", map[string]any{
		"args": args, "actor": "alice", "scope": "tenant:1",
	})
	require.Equal(t, http.StatusOK, alice.Code)

	// Identical args under a different actor must run their own scoped
	// fetch, not be served the first caller's document.
	bob := doRequest(t, router, http.MethodPost, "/renders/statement", map[string]any{
		"args": args, "actor": "bob", "scope": "tenant:1",
	})
	require.Equal(t, http.StatusOK, bob.Code)
	assert.Equal(t, []string{"alice", "bob"}, fetcher.actors)
	assert.Len(t, srv.Keys(), 2)

	// A repeat invocation by the same actor does hit the cache.
	again := doRequest(t, router, http.MethodPost, "/renders/statement", map[string]any{
		"args": args, "actor": "alice", "scope": "tenant:1",
	})
	require.Equal(t, http.StatusOK, again.Code)
	assert.Equal(t, []string{"alice", "bob"}, fetcher.actors)
	assert.Equal(t, alice.Body.String(), again.Body.String())
}

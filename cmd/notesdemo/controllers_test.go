package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	mvcchi "github.com/meidoworks/nekoq-mvc/http/chi"
	"github.com/meidoworks/nekoq-mvc/http/mvc"
)

var testSecret = []byte("test-secret")

func newTestApp(t *testing.T) (*mvcchi.App, *NoteStore, afero.Fs) {
	t.Helper()
	store := openTestStore(t)
	fs := afero.NewMemMapFs()
	settings := mvcchi.NewSettings()
	settings.Set(settingMirrorHosts, []string{"127.0.0.1"})
	app, err := newApplication(&applicationReq{
		Settings:  settings,
		Store:     store,
		Fs:        fs,
		ExportDir: "/exports",
		JwtSecret: testSecret,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return app, store, fs
}

func do(app http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, r)
	return w
}

func TestNotesLifecycle(t *testing.T) {
	app, _, _ := newTestApp(t)

	r := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"title":"groceries","body":"milk"}`))
	r.Header.Set("Content-Type", "application/json")
	w := do(app, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, uint64(1), created.ID)
	assert.Equal(t, "groceries", created.Title)

	w = do(app, httptest.NewRequest(http.MethodGet, "/notes/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var shown Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &shown))
	assert.Equal(t, "milk", shown.Body)

	w = do(app, httptest.NewRequest(http.MethodGet, "/notes", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	w = do(app, httptest.NewRequest(http.MethodDelete, "/notes/1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := IssueToken(testSecret, "admin", time.Minute)
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodDelete, "/notes/1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = do(app, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(app, httptest.NewRequest(http.MethodGet, "/notes/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateFromForm(t *testing.T) {
	app, store, _ := newTestApp(t)

	form := url.Values{"title": {"from a form"}}
	r := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := do(app, r)
	require.Equal(t, http.StatusCreated, w.Code)

	notes, err := store.List()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "from a form", notes[0].Title)
}

func TestCreateRequiresTitle(t *testing.T) {
	app, _, _ := newTestApp(t)

	r := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"title":"  "}`))
	r.Header.Set("Content-Type", "application/json")
	w := do(app, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowBadID(t *testing.T) {
	app, _, _ := newTestApp(t)

	w := do(app, httptest.NewRequest(http.MethodGet, "/notes/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHomeView(t *testing.T) {
	app, store, _ := newTestApp(t)
	_, err := store.Create("a very long note title that will certainly be truncated", "")
	require.NoError(t, err)

	w := do(app, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "<h1>Notes</h1>")
	assert.Contains(t, body, "1 note")
	assert.Contains(t, body, "a very long note title that will certain <small>")
}

func TestExportDownload(t *testing.T) {
	app, store, fs := newTestApp(t)
	_, err := store.Create("exported", "")
	require.NoError(t, err)

	w := do(app, httptest.NewRequest(http.MethodGet, "/notes/export", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="notes.json"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), `"title": "exported"`)

	ok, err := afero.Exists(fs, "/exports/notes.json")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLegacyRedirect(t *testing.T) {
	app, _, _ := newTestApp(t)

	w := do(app, httptest.NewRequest(http.MethodGet, "/list", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
	assert.Equal(t, "/notes", w.Header().Get("Location"))
}

func TestConventionRoutes(t *testing.T) {
	app, _, _ := newTestApp(t)

	w := do(app, httptest.NewRequest(http.MethodGet, "/home/index", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(app, httptest.NewRequest(http.MethodPost, "/home/missing", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = do(app, httptest.NewRequest(http.MethodGet, "/nobody/index", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newTestApp(t)
	do(app, httptest.NewRequest(http.MethodGet, "/notes", nil))

	w := do(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nekoq_mvc_dispatch_total{action="index",controller="notes",outcome="ok"} 1`)
}

func TestNotesUnknownAction(t *testing.T) {
	app, _, _ := newTestApp(t)

	h := app.Middleware(mvc.Params{mvc.ParamController: "notes", mvc.ParamAction: "archive"})
	w := do(h, httptest.NewRequest(http.MethodGet, "/anything", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMirror(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote payload"))
	}))
	defer remote.Close()
	app, _, _ := newTestApp(t)

	q := url.Values{"url": {remote.URL + "/files/report.txt"}}
	w := do(app, httptest.NewRequest(http.MethodGet, "/notes/mirror?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="report.txt"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "remote payload", w.Body.String())

	w = do(app, httptest.NewRequest(http.MethodGet, "/notes/mirror?url=file:///etc/passwd", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMirrorHostNotAllowed(t *testing.T) {
	var fetched atomic.Bool
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched.Store(true)
	}))
	defer remote.Close()
	app, _, _ := newTestApp(t)

	for _, target := range []string{
		"http://169.254.169.254/latest/meta-data",
		strings.Replace(remote.URL, "127.0.0.1", "localhost", 1) + "/secret",
	} {
		q := url.Values{"url": {target}}
		w := do(app, httptest.NewRequest(http.MethodGet, "/notes/mirror?"+q.Encode(), nil))
		assert.Equal(t, http.StatusForbidden, w.Code, target)
	}
	assert.False(t, fetched.Load())
}

func TestMirrorDisabledWithoutHosts(t *testing.T) {
	store := openTestStore(t)
	app, err := newApplication(&applicationReq{
		Settings:  mvcchi.NewSettings(),
		Store:     store,
		Fs:        afero.NewMemMapFs(),
		JwtSecret: testSecret,
		Logger:    zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	w := do(app, httptest.NewRequest(http.MethodGet, "/notes/mirror?url=http://127.0.0.1/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDestroyThroughConventionRouteNeedsToken(t *testing.T) {
	app, store, _ := newTestApp(t)
	note, err := store.Create("keep me", "")
	require.NoError(t, err)

	w := do(app, httptest.NewRequest(http.MethodPost, "/notes/destroy?id=1", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	_, err = store.Get(note.ID)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/notes/destroy?id=1", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = do(app, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := IssueToken(testSecret, "admin", time.Minute)
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodPost, "/notes/destroy?id=1", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = do(app, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	_, err = store.Get(note.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

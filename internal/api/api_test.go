package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/caged/internal/apperr"
	"github.com/starford/caged/internal/clicks"
	"github.com/starford/caged/internal/library"
	"github.com/starford/caged/internal/session"
	"github.com/starford/caged/internal/store"
)

type fakeTutorials struct {
	rows map[string]string
}

func (f fakeTutorials) Get(p string) (*library.Tutorial, error) {
	body, ok := f.rows[p]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &library.Tutorial{TutorialRow: store.TutorialRow{Path: p, Title: p}, Body: body}, nil
}

func (f fakeTutorials) List() ([]store.TutorialRow, error) {
	var out []store.TutorialRow
	for p := range f.rows {
		out = append(out, store.TutorialRow{Path: p, Title: p})
	}
	return out, nil
}

func (f fakeTutorials) Search(query string, _ int) ([]store.SearchResult, error) {
	var out []store.SearchResult
	for p, body := range f.rows {
		if strings.Contains(strings.ToLower(body), strings.ToLower(query)) {
			out = append(out, store.SearchResult{Path: p, Title: p, Snippet: body})
		}
	}
	return out, nil
}

type testEnv struct {
	router  http.Handler
	clock   *clicks.ManualClock
	manager *session.Manager
}

func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	clk := clicks.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	m := session.NewManager(session.WithClock(clk))
	t.Cleanup(m.Close)
	tuts := fakeTutorials{rows: map[string]string{
		"caged/intro.pdf": "The CAGED system connects five shapes.",
		"modes.pdf":       "Dorian and mixolydian.",
	}}
	h := NewHandler(m, tuts)
	return &testEnv{
		router:  NewRouter(h, authToken != "", authToken, nil),
		clock:   clk,
		manager: m,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) SnapshotDTO {
	t.Helper()
	var snap SnapshotDTO
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (body %s)", err, w.Body.String())
	}
	return snap
}

func (e *testEnv) create(t *testing.T, body any) SnapshotDTO {
	t.Helper()
	w := e.do(t, http.MethodPost, "/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeSnapshot(t, w)
}

func TestCreateAndGetSession(t *testing.T) {
	env := newTestEnv(t, "")

	snap := env.create(t, map[string]string{"key": "E", "quality": "Min7"})
	if snap.Key != "E" || snap.Quality != "Min7" || snap.Shape != "C" || snap.Mode != "box" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if len(snap.Notes) == 0 {
		t.Fatal("box mode should show notes")
	}
	for _, n := range snap.Notes {
		if n.IsRoot && n.Label != "R" {
			t.Errorf("root at %d/%d labelled %q", n.String, n.Fret, n.Label)
		}
	}

	w := env.do(t, http.MethodGet, "/sessions/"+snap.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if got := decodeSnapshot(t, w); got.ID != snap.ID || got.Version != snap.Version {
		t.Errorf("get = %+v, want %+v", got, snap)
	}
}

func TestCreateSession_EmptyBodyUsesDefaults(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	if snap.Key != "C" || snap.Quality != "Maj7" || snap.Tuning != "Standard" {
		t.Errorf("defaults not applied: %+v", snap)
	}
}

func TestCreateSession_InvalidKey(t *testing.T) {
	env := newTestEnv(t, "")
	w := env.do(t, http.MethodPost, "/sessions", map[string]string{"key": "H"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid key = %d, want 400", w.Code)
	}
}

func TestListAndDeleteSessions(t *testing.T) {
	env := newTestEnv(t, "")
	a := env.create(t, nil)
	env.create(t, nil)

	w := env.do(t, http.MethodGet, "/sessions", nil)
	var list SessionListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Fatalf("total = %d, want 2", list.Total)
	}

	w = env.do(t, http.MethodDelete, "/sessions/"+a.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/sessions/"+a.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/sessions/"+a.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete twice = %d, want 404", w.Code)
	}
}

func TestShapeEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/shape/advance", nil)
	if got := decodeSnapshot(t, w); got.Shape != "A" {
		t.Errorf("after advance shape = %s, want A", got.Shape)
	}

	w = env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/shape", map[string]string{"shape": "e"})
	if got := decodeSnapshot(t, w); got.Shape != "E" {
		t.Errorf("after select shape = %s, want E", got.Shape)
	}

	w = env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/shape", map[string]string{"shape": "X"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad shape = %d, want 400", w.Code)
	}
}

func TestSetRootAndJumpToShape(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/root", map[string]int{"string": 1, "fret": 3})
	if w.Code != http.StatusOK {
		t.Fatalf("set root status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := decodeSnapshot(t, w); got.Key != "C" || got.Shape != snap.Shape {
		t.Errorf("after set root: key %s shape %s", got.Key, got.Shape)
	}

	w = env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/shape/jump", map[string]int{"string": 0, "fret": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("jump status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decodeSnapshot(t, w)
	if got.Key != "A" || got.Shape != "E" || got.Mode != "box" {
		t.Errorf("after jump: key %s shape %s mode %s", got.Key, got.Shape, got.Mode)
	}

	w = env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/root", map[string]int{"string": 9, "fret": 0})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("off-grid root = %d, want 422", w.Code)
	}
}

func TestSwitchMode(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)

	w := env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/mode", map[string]string{"mode": "edit"})
	got := decodeSnapshot(t, w)
	if got.Mode != "edit" {
		t.Fatalf("mode = %s, want edit", got.Mode)
	}
	if len(got.Notes) != len(snap.Notes) {
		t.Errorf("entering edit changed visible notes: %d -> %d", len(snap.Notes), len(got.Notes))
	}

	w = env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/mode", map[string]string{"mode": "free"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad mode = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/mode", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing mode = %d, want 400", w.Code)
	}
}

func TestClick_DoubleAdvancesShape(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	path := "/sessions/" + snap.ID + "/clicks"
	pos := map[string]int{"string": 0, "fret": 3}

	w := env.do(t, http.MethodPost, path, pos)
	if w.Code != http.StatusAccepted {
		t.Fatalf("click = %d, body %s", w.Code, w.Body.String())
	}
	var resp ClickResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pending != 1 {
		t.Errorf("pending = %d, want 1", resp.Pending)
	}

	env.clock.Advance(100 * time.Millisecond)
	w = env.do(t, http.MethodPost, path, pos)
	if w.Code != http.StatusAccepted {
		t.Fatalf("second click = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID, nil)
	if got := decodeSnapshot(t, w); got.Shape != "A" {
		t.Errorf("shape after double click = %s, want A", got.Shape)
	}
}

func TestClick_SingleInEditTogglesNote(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/mode", map[string]string{"mode": "edit"})

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/clicks", map[string]int{"string": 0, "fret": 21})
	if w.Code != http.StatusAccepted {
		t.Fatalf("click = %d", w.Code)
	}
	env.clock.Advance(clicks.DefaultWindow)

	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID+"/notes/0/21", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get note = %d", w.Code)
	}
	var note NoteStateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if !note.Visible || !note.InScale || note.IsRoot {
		t.Errorf("note after single click = %+v", note)
	}
}

func TestClick_InvalidPosition(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/clicks", map[string]int{"string": 9, "fret": 3})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("off-grid click = %d, want 422", w.Code)
	}
	w = env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/clicks", map[string]int{"fret": 3})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing string = %d, want 400", w.Code)
	}
	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID+"/notes/0/99", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("off-grid note = %d, want 422", w.Code)
	}
}

func TestSetKeyAndReset(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)

	w := env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/key", map[string]string{"key": "G", "quality": "Dom7"})
	got := decodeSnapshot(t, w)
	if got.Key != "G" || got.Quality != "Dom7" {
		t.Errorf("after set key: %+v", got)
	}

	env.do(t, http.MethodPut, "/sessions/"+snap.ID+"/mode", map[string]string{"mode": "edit"})
	w = env.do(t, http.MethodDelete, "/sessions/"+snap.ID+"/edits", nil)
	if got := decodeSnapshot(t, w); len(got.Notes) != 0 {
		t.Errorf("reset in edit mode left %d notes", len(got.Notes))
	}
}

func TestImportTab(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	tabText := "---\nkey: A\nquality: Min7\n---\n" +
		"e|-----5---|\n" +
		"B|-----5---|\n" +
		"G|-----5---|\n" +
		"D|-----5---|\n" +
		"A|---------|\n" +
		"E|--5------|\n"

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/import", map[string]string{"tab": tabText})
	if w.Code != http.StatusOK {
		t.Fatalf("import = %d, body %s", w.Code, w.Body.String())
	}
	got := decodeSnapshot(t, w)
	if got.Mode != "edit" || got.Key != "A" || got.Quality != "Min7" {
		t.Errorf("after import: %+v", got)
	}
	if len(got.Notes) != 5 {
		t.Errorf("imported %d notes, want 5", len(got.Notes))
	}

	w = env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/import", map[string]string{"tab": "no tab here"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("import without tab = %d, want 400", w.Code)
	}
}

func TestImportTab_MalformedIsClientError(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	for name, tabText := range map[string]string{
		"short block":   "e|--1--|\nB|--1--|\n",
		"fret overflow": "e|--99999999999999999999--|\nB|-----|\nG|-----|\nD|-----|\nA|-----|\nE|-----|\n",
	} {
		w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/import", map[string]string{"tab": tabText})
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: import = %d, want 400 (body %s)", name, w.Code, w.Body.String())
		}
	}
}

func TestImportTab_RejectedLeavesSessionUnchanged(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, nil)
	tabText := "---\nkey: G\n---\n" +
		"e|--30--|\n" +
		"B|------|\n" +
		"G|------|\n" +
		"D|------|\n" +
		"A|------|\n" +
		"E|------|\n"

	w := env.do(t, http.MethodPost, "/sessions/"+snap.ID+"/import", map[string]string{"tab": tabText})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("import = %d, want 422 (body %s)", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID, nil)
	got := decodeSnapshot(t, w)
	if got.Key != snap.Key || got.Mode != snap.Mode || got.Version != snap.Version {
		t.Errorf("rejected import changed the session: before %+v after %+v", snap, got)
	}
}

func TestExport(t *testing.T) {
	env := newTestEnv(t, "")
	snap := env.create(t, map[string]string{"key": "F#"})

	w := env.do(t, http.MethodGet, "/sessions/"+snap.ID+"/export?format=pdf", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("export = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	want := `attachment; filename="CAGED_Session_Fs_Maj7_C.pdf"`
	if cd := w.Header().Get("Content-Disposition"); cd != want {
		t.Errorf("disposition = %q, want %q", cd, want)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Error("body is not a PDF")
	}

	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID+"/export?format=midi", nil)
	if w.Code != http.StatusOK || !bytes.HasPrefix(w.Body.Bytes(), []byte("MThd")) {
		t.Errorf("midi export = %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/sessions/"+snap.ID+"/export?format=png", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown format = %d, want 400", w.Code)
	}
}

func TestTutorials(t *testing.T) {
	env := newTestEnv(t, "")

	w := env.do(t, http.MethodGet, "/tutorials?q=caged", nil)
	var sr SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 1 || sr.Results[0].Path != "caged/intro.pdf" {
		t.Errorf("search results = %+v", sr.Results)
	}

	w = env.do(t, http.MethodGet, "/tutorials", nil)
	var list TutorialListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 {
		t.Errorf("tutorial total = %d, want 2", list.Total)
	}

	w = env.do(t, http.MethodGet, "/tutorials/caged/intro.pdf", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "five shapes") {
		t.Errorf("get tutorial = %d %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/tutorials/missing.pdf", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing tutorial = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	w := env.do(t, http.MethodGet, "/sessions", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	m := session.NewManager()
	t.Cleanup(m.Close)
	router := NewRouter(NewHandler(m, nil), true, "secret", sseStub())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	m := session.NewManager()
	t.Cleanup(m.Close)
	router := NewRouter(NewHandler(m, nil), true, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tutorials", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tutorials without token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_QueryTokenForGet(t *testing.T) {
	env := newTestEnv(t, "secret123")

	w := env.do(t, http.MethodGet, "/sessions?access_token=secret123", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET with query token = %d, want 200", w.Code)
	}
	w = env.do(t, http.MethodPost, "/sessions?access_token=secret123", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST with query token = %d, want 401", w.Code)
	}
}

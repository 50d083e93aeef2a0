package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmap/internal/apperr"
	"github.com/starford/mindmap/internal/client"
	"github.com/starford/mindmap/internal/mapservice"
	"github.com/starford/mindmap/internal/testutil"
	"github.com/starford/mindmap/internal/wire"
)

// testEnv sets up a temp vault, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode; otherwise token mode.
func testEnv(t *testing.T, authToken string) (*mapservice.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*mapservice.Service, http.Handler) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	svc := mapservice.NewService(store, db, mapservice.WithClock(testutil.Clock(time.Now().UTC())))
	return svc, NewRouter(svc, authEnabled, token, sseHandler)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createMap(t *testing.T, router http.Handler, title string) wire.Map {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/mindmaps", wire.Map{
		Title: title,
		Nodes: []wire.Node{
			{ID: "n1", Label: "Root", Data: map[string]any{"type": "topic"}},
			{ID: "n2", Label: "Child"},
		},
		Edges: []wire.Edge{{ID: "e1", SourceID: "n1", TargetID: "n2"}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var m wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	return m
}

func TestCreateAndGetMap(t *testing.T) {
	_, router := testEnv(t, "")
	created := createMap(t, router, "Payments")
	if created.ID == "" || created.Status != "draft" {
		t.Fatalf("created = %+v", created)
	}

	w := doJSON(t, router, http.MethodGet, "/mindmaps/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if w.Header().Get("ETag") == "" {
		t.Error("missing ETag")
	}
	var m wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m.Title != "Payments" || len(m.Nodes) != 2 || m.Edges[0].SourceID != "n1" {
		t.Errorf("map = %+v", m)
	}
	if m.Nodes[0].Data["type"] != "topic" {
		t.Errorf("node data = %v", m.Nodes[0].Data)
	}
}

func TestCreateValidation(t *testing.T) {
	_, router := testEnv(t, "")

	w := doJSON(t, router, http.MethodPost, "/mindmaps", wire.Map{Title: "x", Status: "archived"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad status = %d, want 422", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/mindmaps", wire.Map{Title: strings.Repeat("t", 201)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("long title = %d, want 422", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/mindmaps", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON = %d, want 400", rec.Code)
	}
}

func TestUpdateKeepsEdgesWithoutEndpoints(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Loose ends")
	m.Edges = append(m.Edges, wire.Edge{ID: "e2", SourceID: "n2"}, wire.Edge{ID: "e3", TargetID: "n1"})

	w := doJSON(t, router, http.MethodPut, "/mindmaps/"+m.ID, m)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	var out wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Edges) != 3 {
		t.Errorf("edges = %d, want 3", len(out.Edges))
	}

	w = doJSON(t, router, http.MethodGet, "/mindmaps/"+m.ID+"/export/mermaid", nil)
	var exp wire.ExportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &exp)
	if n := strings.Count(exp.Mermaid, "-->"); n != 1 {
		t.Errorf("rendered %d edges, want 1:\n%s", n, exp.Mermaid)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Lock")

	get := doJSON(t, router, http.MethodGet, "/mindmaps/"+m.ID, nil)
	tag := get.Header().Get("ETag")

	m.Title = "Lock v2"
	w := doJSON(t, router, http.MethodPut, "/mindmaps/"+m.ID, m, "If-Match", tag)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}

	// The old tag is now stale.
	w = doJSON(t, router, http.MethodPut, "/mindmaps/"+m.ID, m, "If-Match", tag)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Free")
	m.Nodes = m.Nodes[:1]
	m.Edges = nil
	w := doJSON(t, router, http.MethodPut, "/mindmaps/"+m.ID, m)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}
	var out wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Nodes) != 1 || len(out.Edges) != 0 {
		t.Errorf("out = %+v", out)
	}
}

func TestUpdateMap_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodPut, "/mindmaps/missing", wire.Map{Title: "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRenameMap(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Old")

	w := doJSON(t, router, http.MethodPatch, "/mindmaps/"+m.ID, wire.RenameRequest{Title: "New"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d", w.Code)
	}
	var out wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Title != "New" || len(out.Nodes) != 2 {
		t.Errorf("out = %+v", out)
	}

	w = doJSON(t, router, http.MethodPatch, "/mindmaps/"+m.ID, wire.RenameRequest{Title: ""})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty title = %d, want 422", w.Code)
	}
}

func TestDeleteMap(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Bye")

	w := doJSON(t, router, http.MethodDelete, "/mindmaps/"+m.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/mindmaps/"+m.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/mindmaps/"+m.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListMaps(t *testing.T) {
	_, router := testEnv(t, "")
	a := createMap(t, router, "Alpha")
	createMap(t, router, "Beta")

	if w := doJSON(t, router, http.MethodPost, "/mindmaps/"+a.ID+"/publish", nil); w.Code != http.StatusOK {
		t.Fatalf("publish = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/mindmaps", nil)
	var all []MapSummary
	_ = json.Unmarshal(w.Body.Bytes(), &all)
	if len(all) != 2 || all[0].ID != a.ID {
		t.Errorf("all = %+v", all)
	}

	w = doJSON(t, router, http.MethodGet, "/mindmaps?status=draft", nil)
	var drafts []MapSummary
	_ = json.Unmarshal(w.Body.Bytes(), &drafts)
	if len(drafts) != 1 || drafts[0].Title != "Beta" {
		t.Errorf("drafts = %+v", drafts)
	}

	w = doJSON(t, router, http.MethodGet, "/mindmaps?q=zzz", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list body = %q", w.Body.String())
	}
}

func TestExpandPublishExport(t *testing.T) {
	_, router := testEnv(t, "")
	m := createMap(t, router, "Launch")

	w := doJSON(t, router, http.MethodPost, "/mindmaps/"+m.ID+"/ai/expand", wire.ExpandRequest{Prompt: "Pricing; Docs"})
	if w.Code != http.StatusOK {
		t.Fatalf("expand status = %d, body = %s", w.Code, w.Body.String())
	}
	var grown wire.Map
	_ = json.Unmarshal(w.Body.Bytes(), &grown)
	if len(grown.Nodes) != 4 {
		t.Errorf("nodes after expand = %d", len(grown.Nodes))
	}

	w = doJSON(t, router, http.MethodPost, "/mindmaps/"+m.ID+"/ai/expand", wire.ExpandRequest{})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty prompt = %d, want 422", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/mindmaps/"+m.ID+"/export/mermaid", nil)
	var exp wire.ExportResponse
	_ = json.Unmarshal(w.Body.Bytes(), &exp)
	if !strings.Contains(exp.Mermaid, `["Root"]`) || !strings.Contains(exp.Mermaid, "Pricing") {
		t.Errorf("mermaid = %q", exp.Mermaid)
	}

	w = doJSON(t, router, http.MethodPost, "/mindmaps/"+m.ID+"/publish", nil)
	var pub wire.PublishResponse
	_ = json.Unmarshal(w.Body.Bytes(), &pub)
	if w.Code != http.StatusOK || pub.ProjectID == "" {
		t.Fatalf("publish = %d %+v", w.Code, pub)
	}
	w = doJSON(t, router, http.MethodPost, "/mindmaps/"+m.ID+"/publish", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("republish = %d, want 409", w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/projects/"+pub.ProjectID, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "mermaid") {
		t.Errorf("project = %d %s", w.Code, w.Body.String())
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createMap(t, router, "Observability")

	w := doJSON(t, router, http.MethodGet, "/search?q=Observability", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Title != "Observability" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	w := doJSON(t, router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodGet, "/mindmaps", nil, "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodGet, "/mindmaps", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := doJSON(t, router, http.MethodGet, "/mindmaps", nil, "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingSSE() http.Handler {
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
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE())
	w := doJSON(t, router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// The HTTP client and the router agree on the REST contract.
func TestClientRoundTrip(t *testing.T) {
	_, router := testEnv(t, "tok")
	root := chi.NewRouter()
	root.Mount("/api/v1", router)
	srv := httptest.NewServer(root)
	defer srv.Close()

	ctx := context.Background()
	var unauthorized bool
	c := client.New(srv.URL+"/", client.WithToken("tok"), client.WithOnUnauthorized(func() { unauthorized = true }))

	created, err := c.Create(ctx, wire.Map{Title: "Contract", Nodes: []wire.Node{{ID: "a", Label: "A"}}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := c.Get(ctx, created.ID)
	if err != nil || got.Title != "Contract" || len(got.Nodes) != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}
	if _, err := c.Rename(ctx, created.ID, "Renamed"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	list, err := c.List(ctx, "draft", "")
	if err != nil || len(list) != 1 || list[0].Title != "Renamed" {
		t.Fatalf("List = %+v, %v", list, err)
	}
	if err := c.Expand(ctx, created.ID, "X, Y"); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	text, err := c.ExportMermaid(ctx, created.ID)
	if err != nil || !strings.Contains(text, "X") {
		t.Fatalf("ExportMermaid = %q, %v", text, err)
	}
	dup, err := c.Duplicate(ctx, created.ID)
	if err != nil || dup.ID == created.ID || !strings.HasPrefix(dup.Title, "Copy of") {
		t.Fatalf("Duplicate = %+v, %v", dup, err)
	}
	if _, err := c.Publish(ctx, created.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := c.Publish(ctx, created.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("republish err = %v", err)
	}
	if err := c.Delete(ctx, dup.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, dup.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("get deleted err = %v", err)
	}

	c.SetToken("bad")
	if _, err := c.List(ctx, "", ""); !errors.Is(err, client.ErrUnauthorized) || !unauthorized {
		t.Errorf("bad token err = %v, hook = %v", err, unauthorized)
	}
}

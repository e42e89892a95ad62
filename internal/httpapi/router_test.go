package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/auth"
	"github.com/ragbot/ragchat/internal/config"
	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/models"
)

// fakeRAGServer speaks the backend's HTTP contract.
func fakeRAGServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ask_question/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "Le bail court jusqu'en mars.",
			"context_used": []map[string]any{
				{"content": "Le bail court jusqu'en mars. Article 3 du contrat.", "score": 91},
				{"content": "Clause de résiliation anticipée.", "score": 55},
			},
		})
	})
	mux.HandleFunc("/get_uploaded_filenames/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &conversation.Conversation{}, &conversation.Message{}, &conversation.AskJob{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		RAGBaseURL:           fakeRAGServer(t).URL,
		SessionMaxAgeSeconds: 7 * 24 * 3600,
		MaxDocumentsPerUser:  3,
		MaxUploadBytes:       10 << 20,
	}
	return NewRouter(db, cfg, nil, nil)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func signup(t *testing.T, r *gin.Engine, email string) []*http.Cookie {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": email, "password": "Str0ng!pass", "firstName": "Jean", "lastName": "Dupont",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("signup status %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	for _, ck := range cookies {
		if ck.Name == auth.CookieName && ck.Value != "" {
			return cookies
		}
	}
	t.Fatalf("no session cookie in signup response")
	return nil
}

func TestSignup_SetsSessionCookie(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "cookie@example.com", "password": "Str0ng!pass", "firstName": "A", "lastName": "B",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var sessCookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == auth.CookieName {
			sessCookie = ck
		}
	}
	if sessCookie == nil {
		t.Fatalf("expected session cookie")
	}
	if !sessCookie.HttpOnly || sessCookie.Path != "/" {
		t.Fatalf("cookie attributes wrong: httpOnly=%v path=%q", sessCookie.HttpOnly, sessCookie.Path)
	}
	if sessCookie.MaxAge != 7*24*3600 {
		t.Fatalf("expected 7-day max-age, got %d", sessCookie.MaxAge)
	}
	if _, ok := auth.DecodeSession(sessCookie.Value); !ok {
		t.Fatalf("cookie value did not decode as a session: %q", sessCookie.Value)
	}
}

func TestSignup_DuplicateEmailFrenchError(t *testing.T) {
	r := setupRouter(t)
	signup(t, r, "double@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": "double@example.com", "password": "Str0ng!pass", "firstName": "A", "lastName": "B",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != false || body["error"] != "Cet email est déjà utilisé" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	r := setupRouter(t)
	signup(t, r, "badlogin@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "badlogin@example.com", "password": "Wr0ng!pass",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["error"] != "Email ou mot de passe incorrect" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	r := setupRouter(t)

	for _, path := range []string{"/api/me", "/api/conversations", "/api/documents"} {
		w := doJSON(t, r, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s status %d, want 401", path, w.Code)
		}
		if body := decode(t, w); body["error"] != "Non autorisé" {
			t.Fatalf("GET %s unexpected body: %v", path, body)
		}
	}
}

func TestMe_ReturnsFreshUser(t *testing.T) {
	r := setupRouter(t)
	cookies := signup(t, r, "me@example.com")

	w := doJSON(t, r, http.MethodGet, "/api/me", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user object, got %v", body)
	}
	if user["email"] != "me@example.com" || user["firstName"] != "Jean" {
		t.Fatalf("unexpected user: %v", user)
	}
}

func TestAskFlow_EndToEnd(t *testing.T) {
	r := setupRouter(t)
	cookies := signup(t, r, "flow@example.com")

	// ask without a conversation id creates one
	w := doJSON(t, r, http.MethodPost, "/api/ask", map[string]string{
		"question": "Quand se termine le bail",
	}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("ask status %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["created"] != true || body["state"] != "success" {
		t.Fatalf("unexpected ask body: %v", body)
	}
	convID, _ := body["conversationId"].(string)
	if convID == "" {
		t.Fatalf("no conversationId in %v", body)
	}
	assistant, ok := body["assistantMessage"].(map[string]any)
	if !ok {
		t.Fatalf("no assistantMessage in %v", body)
	}
	if assistant["content"] != "Le bail court jusqu'en mars." {
		t.Fatalf("unexpected assistant content: %v", assistant["content"])
	}
	msgID, _ := assistant["id"].(string)

	// the conversation lists with the derived title
	w = doJSON(t, r, http.MethodGet, "/api/conversations", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", w.Code, w.Body.String())
	}
	convs, ok := decode(t, w)["conversations"].([]any)
	if !ok || len(convs) != 1 {
		t.Fatalf("expected 1 conversation, got %v", convs)
	}
	if title := convs[0].(map[string]any)["title"]; title != "Quand se termine le bail" {
		t.Fatalf("unexpected title: %v", title)
	}

	// welcome + user + assistant
	w = doJSON(t, r, http.MethodGet, "/api/conversations/"+convID, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("get status %d: %s", w.Code, w.Body.String())
	}
	conv, ok := decode(t, w)["conversation"].(map[string]any)
	if !ok {
		t.Fatalf("no conversation object")
	}
	msgs, _ := conv["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	// rendered context: top-scored excerpt primary, the other one hidden
	w = doJSON(t, r, http.MethodGet, "/api/conversations/"+convID+"/context/"+msgID, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("context status %d: %s", w.Code, w.Body.String())
	}
	view, ok := decode(t, w)["context"].(map[string]any)
	if !ok {
		t.Fatalf("no context view")
	}
	primary, ok := view["primary"].(map[string]any)
	if !ok {
		t.Fatalf("no primary excerpt: %v", view)
	}
	if primary["score"] != float64(91) || primary["tier"] != "high" {
		t.Fatalf("unexpected primary: %v", primary)
	}
	if view["hiddenCount"] != float64(1) {
		t.Fatalf("expected 1 hidden excerpt, got %v", view["hiddenCount"])
	}
	if primary["expanded"] != false {
		t.Fatalf("expected segment view by default")
	}

	// toggling the primary excerpt expands it
	w = doJSON(t, r, http.MethodPost, "/api/conversations/"+convID+"/context/"+msgID+"/toggle",
		map[string]int{"index": 0}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["expanded"] != true {
		t.Fatalf("expected expanded=true, got %v", body)
	}

	// delete, then the conversation reads as absent
	w = doJSON(t, r, http.MethodDelete, "/api/conversations/"+convID, nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodGet, "/api/conversations/"+convID, nil, cookies)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestToggleExcerpt_IndexOutOfRange(t *testing.T) {
	r := setupRouter(t)
	cookies := signup(t, r, "toggle@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/ask", map[string]string{
		"question": "Quand se termine le bail",
	}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("ask status %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	convID, _ := body["conversationId"].(string)
	assistant, ok := body["assistantMessage"].(map[string]any)
	if !ok {
		t.Fatalf("no assistantMessage in %v", body)
	}
	msgID, _ := assistant["id"].(string)

	// the message carries two excerpts, so anything past index 1 is rejected
	for _, idx := range []int{2, 5, -1} {
		w = doJSON(t, r, http.MethodPost, "/api/conversations/"+convID+"/context/"+msgID+"/toggle",
			map[string]int{"index": idx}, cookies)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("index %d: expected 400, got %d: %s", idx, w.Code, w.Body.String())
		}
		if body := decode(t, w); body["error"] != "Index d'extrait invalide" {
			t.Fatalf("index %d: unexpected body %v", idx, body)
		}
	}

	// in-range index still toggles
	w = doJSON(t, r, http.MethodPost, "/api/conversations/"+convID+"/context/"+msgID+"/toggle",
		map[string]int{"index": 1}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("toggle status %d: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["expanded"] != true {
		t.Fatalf("expected expanded=true, got %v", body)
	}
}

func TestConversationIsolation(t *testing.T) {
	r := setupRouter(t)
	owner := signup(t, r, "owner@example.com")
	other := signup(t, r, "other@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/conversations", nil, owner)
	if w.Code != http.StatusOK {
		t.Fatalf("create status %d: %s", w.Code, w.Body.String())
	}
	conv, ok := decode(t, w)["conversation"].(map[string]any)
	if !ok {
		t.Fatalf("no conversation object")
	}
	convID := conv["id"].(string)

	// another user sees 404, not 403
	w = doJSON(t, r, http.MethodGet, "/api/conversations/"+convID, nil, other)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign conversation, got %d", w.Code)
	}
	if body := decode(t, w); body["error"] != "Conversation non trouvée" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAskAsync_UnavailableWithoutBroker(t *testing.T) {
	r := setupRouter(t)
	cookies := signup(t, r, "async@example.com")

	w := doJSON(t, r, http.MethodPost, "/api/conversations", nil, cookies)
	conv := decode(t, w)["conversation"].(map[string]any)

	w = doJSON(t, r, http.MethodPost, "/api/ask-async", map[string]string{
		"question": "q", "conversationId": conv["id"].(string),
	}, cookies)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a broker, got %d", w.Code)
	}
}

func TestListDocuments_EmptyBackend(t *testing.T) {
	r := setupRouter(t)
	cookies := signup(t, r, "docs@example.com")

	// backend 404 reads as an empty list
	w := doJSON(t, r, http.MethodGet, "/api/documents", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	files, ok := decode(t, w)["files"].([]any)
	if !ok || len(files) != 0 {
		t.Fatalf("expected empty files list, got %v", files)
	}
}

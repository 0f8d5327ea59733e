package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-messages-api/internal/auth"
	"github.com/tbourn/go-messages-api/internal/config"
	"github.com/tbourn/go-messages-api/internal/domain"
	"github.com/tbourn/go-messages-api/internal/http/handlers"
	"github.com/tbourn/go-messages-api/internal/services"
	"github.com/tbourn/go-messages-api/internal/store"
)

func baseConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   100,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newDeps() Deps {
	threads := store.NewMemory[domain.Thread]()
	messages := store.NewMemory[domain.Message]()
	return Deps{
		Threads:  services.NewThreadService(threads, messages),
		Messages: services.NewMessageService(messages, threads),
		Pingers:  []handlers.Pinger{threads, messages},
	}
}

func newEngine(t *testing.T, deps Deps, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, deps, cfg)
	return r
}

func serve(r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newEngine(t, newDeps(), baseConfig())

	w := serve(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if w.Header().Get("X-Request-ID") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected request id and security headers, got %v", w.Header())
	}

	w = serve(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Messages") {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/health/store", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("GET /health/store = %d %q", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	w = serve(r, http.MethodGet, "/nope", "")
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), handlers.ErrCodeNotFound) {
		t.Fatalf("GET /nope = %d %q", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/health", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off by default
	if w = serve(r, http.MethodGet, "/swagger/index.html", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r := newEngine(t, newDeps(), cfg)

	w := serve(r, http.MethodGet, "/health", "", "Origin", "http://example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}

	w = serve(r, http.MethodGet, "/health", "", "Origin", "http://evil.test")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected ACAO for foreign origin: %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	r := newEngine(t, newDeps(), cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/threads/{id}/messages") {
		t.Fatalf("swagger doc = %d", w.Code)
	}
}

func TestRegisterRoutes_GzipWhenEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.GzipEnabled = true
	r := newEngine(t, newDeps(), cfg)

	w := serve(r, http.MethodGet, "/api/v1/threads", "", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got %d %q", w.Code, w.Header().Get("Content-Encoding"))
	}
}

func TestAPI_ThreadAndMessageFlow(t *testing.T) {
	r := newEngine(t, newDeps(), baseConfig())

	w := serve(r, http.MethodPost, "/api/v1/threads", `{"title":"Trip"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create thread = %d %s", w.Code, w.Body.String())
	}
	var th domain.Thread
	_ = json.Unmarshal(w.Body.Bytes(), &th)

	for _, text := range []string{"Hello world", "Goodbye"} {
		w = serve(r, http.MethodPost, "/api/v1/threads/"+th.ID+"/messages", `{"sender":"user","text":"`+text+`"}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("create message = %d %s", w.Code, w.Body.String())
		}
		time.Sleep(2 * time.Millisecond) // distinct created_at
	}

	w = serve(r, http.MethodGet, "/api/v1/threads/"+th.ID+"/messages?search=HELLO", "")
	var res struct {
		Total, Page, Limit int
		Data               []domain.Message
	}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || res.Total != 1 || res.Page != 1 || res.Limit != 2 || res.Data[0].Text != "Hello world" {
		t.Fatalf("search = %d %+v", w.Code, res)
	}

	w = serve(r, http.MethodGet, "/api/v1/threads/"+th.ID+"/messages?sort=-date", "")
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Data) != 2 || res.Data[0].Text != "Goodbye" {
		t.Fatalf("desc order = %+v", res.Data)
	}

	w = serve(r, http.MethodDelete, "/api/v1/threads/"+th.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	w = serve(r, http.MethodGet, "/api/v1/messages", "")
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Total != 0 {
		t.Fatalf("messages survived thread delete: %+v", res)
	}
}

func TestAPI_AuthGatesWritesAndLists(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc, err := auth.New(auth.Options{
		Username:     "admin",
		PasswordHash: hash,
		Secret:       []byte("0123456789abcdef0123456789abcdef"),
		TTL:          time.Hour,
	})
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	deps := newDeps()
	deps.Auth = svc
	cfg := baseConfig()
	cfg.Auth.Enabled = true
	r := newEngine(t, deps, cfg)

	if w := serve(r, http.MethodGet, "/api/v1/threads", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/api/v1/threads", `{"title":"x"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated create = %d", w.Code)
	}
	// get-by-id is public; unknown id is a 404, not a 401
	if w := serve(r, http.MethodGet, "/api/v1/threads/unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("public get = %d", w.Code)
	}

	if w := serve(r, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"nope"}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", w.Code)
	}
	w := serve(r, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"s3cret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var tok auth.Token
	_ = json.Unmarshal(w.Body.Bytes(), &tok)

	w = serve(r, http.MethodPost, "/api/v1/threads", `{"title":"x"}`, "Authorization", "Bearer "+tok.Token)
	if w.Code != http.StatusCreated {
		t.Fatalf("authenticated create = %d %s", w.Code, w.Body.String())
	}
}

func TestAPI_LoginDisabledWithoutAuth(t *testing.T) {
	r := newEngine(t, newDeps(), baseConfig())
	w := serve(r, http.MethodPost, "/api/v1/login", `{"username":"a","password":"b"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("login without auth = %d", w.Code)
	}
	// open API when auth is off
	if w := serve(r, http.MethodGet, "/api/v1/threads", ""); w.Code != http.StatusOK {
		t.Fatalf("open list = %d", w.Code)
	}
}

func TestAPI_RateLimited(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newEngine(t, newDeps(), cfg)

	if w := serve(r, http.MethodGet, "/api/v1/threads", ""); w.Code != http.StatusOK {
		t.Fatalf("first = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/threads", "")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestAPI_AuthenticatedUserHasOwnBucket(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc, err := auth.New(auth.Options{
		Username:     "admin",
		PasswordHash: hash,
		Secret:       []byte("0123456789abcdef0123456789abcdef"),
		TTL:          time.Hour,
	})
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	deps := newDeps()
	deps.Auth = svc
	cfg := baseConfig()
	cfg.Auth.Enabled = true
	cfg.RateRPS = 0.001
	cfg.RateBurst = 1
	r := newEngine(t, deps, cfg)

	w := serve(r, http.MethodPost, "/api/v1/login", `{"username":"admin","password":"s3cret"}`, "X-Forwarded-For", "198.51.100.1")
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d %s", w.Code, w.Body.String())
	}
	var tok auth.Token
	_ = json.Unmarshal(w.Body.Bytes(), &tok)
	bearer := "Bearer " + tok.Token

	// each request comes from a fresh IP, so only the user bucket can run out
	if w := serve(r, http.MethodGet, "/api/v1/threads", "", "Authorization", bearer, "X-Forwarded-For", "198.51.100.2"); w.Code != http.StatusOK {
		t.Fatalf("first list = %d", w.Code)
	}
	w = serve(r, http.MethodGet, "/api/v1/threads", "", "Authorization", bearer, "X-Forwarded-For", "198.51.100.3")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second list from another IP = %d; want 429", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/threads/unknown", "", "X-Forwarded-For", "198.51.100.4"); w.Code != http.StatusNotFound {
		t.Fatalf("public route = %d; want 404", w.Code)
	}
}

func TestAPI_OversizedBodyRejected(t *testing.T) {
	r := newEngine(t, newDeps(), baseConfig())
	big := `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := serve(r, http.MethodPost, "/api/v1/threads", big)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized body = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

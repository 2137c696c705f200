package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/shared/config"
)

func testConfig(t *testing.T, processorURL string) config.Config {
	t.Helper()
	return config.Config{
		Port:             "8080",
		Env:              "dev",
		CORSAllowOrigin:  []string{"http://localhost:5173"},
		ObjectStoreType:  "local",
		LocalStoreDir:    t.TempDir(),
		DocPrefix:        "docs",
		SignedURLTTL:     time.Minute,
		MaxUploadBytes:   1 << 20,
		ProcessorBaseURL: processorURL,
		CallbackURL:      "http://localhost:8080/api/v1/ingestion/status",
		PublicBaseURL:    "http://localhost:8080",
	}
}

type fakeProcessor struct {
	*httptest.Server
	mu         sync.Mutex
	dispatched []map[string]any
}

func newFakeProcessor(t *testing.T) *fakeProcessor {
	t.Helper()
	fp := &fakeProcessor{}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/process-document", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fp.mu.Lock()
		fp.dispatched = append(fp.dispatched, body)
		fp.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	fp.Server = httptest.NewServer(mux)
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProcessor) waitForDispatch(t *testing.T) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fp.mu.Lock()
		if len(fp.dispatched) > 0 {
			body := fp.dispatched[0]
			fp.mu.Unlock()
			return body
		}
		fp.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("processor never received a dispatch")
	return nil
}

func do(router *gin.Engine, method, path, token, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func doJSON(router *gin.Engine, method, path, token string, payload any) *httptest.ResponseRecorder {
	body := &bytes.Buffer{}
	json.NewEncoder(body).Encode(payload)
	return do(router, method, path, token, "application/json", body)
}

func decodeBody(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func registerAndLogin(t *testing.T, router *gin.Engine, username, email, role string) string {
	t.Helper()
	resp := doJSON(router, http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"username": username,
		"email":    email,
		"password": "s3cret-pass",
		"role":     role,
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", resp.Code, resp.Body.String())
	}

	login := doJSON(router, http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email":    email,
		"password": "s3cret-pass",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("login: %d %s", login.Code, login.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, login, &body)
	if body.Token == "" {
		t.Fatal("empty token")
	}
	return body.Token
}

func uploadFile(t *testing.T, router *gin.Engine, token, fileName, content string) int64 {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("document", fileName)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte(content))
	writer.Close()

	resp := do(router, http.MethodPost, "/api/v1/documents", token, writer.FormDataContentType(), body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID int64 `json:"id"`
	}
	decodeBody(t, resp, &created)
	return created.ID
}

func TestDocumentLifecycleEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fp := newFakeProcessor(t)

	app, err := Build(testConfig(t, fp.URL))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	router := app.Router

	token := registerAndLogin(t, router, "alice", "alice@example.com", "editor")

	docID := uploadFile(t, router, token, "report.pdf", "pdf bytes")

	// Read resolves a signed link that the files route can serve.
	read := do(router, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", docID), token, "", nil)
	if read.Code != http.StatusOK {
		t.Fatalf("read: %d %s", read.Code, read.Body.String())
	}
	var link struct {
		URL  string `json:"url"`
		Name string `json:"name"`
	}
	decodeBody(t, read, &link)
	if !strings.Contains(link.URL, "docs/user_") {
		t.Fatalf("signed url missing storage key: %s", link.URL)
	}
	filePath := strings.TrimPrefix(link.URL, "http://localhost:8080")
	fileResp := do(router, http.MethodGet, filePath, "", "", nil)
	if fileResp.Code != http.StatusOK {
		t.Fatalf("file fetch: %d %s", fileResp.Code, fileResp.Body.String())
	}
	if fileResp.Body.String() != "pdf bytes" {
		t.Fatalf("file content mismatch: %q", fileResp.Body.String())
	}

	// Trigger hands the document to the processor without blocking.
	trigger := do(router, http.MethodGet, fmt.Sprintf("/api/v1/ingestion/trigger/%d", docID), token, "", nil)
	if trigger.Code != http.StatusAccepted {
		t.Fatalf("trigger: %d %s", trigger.Code, trigger.Body.String())
	}
	dispatch := fp.waitForDispatch(t)
	if dispatch["document_name"] != "report.pdf" {
		t.Fatalf("unexpected dispatch %+v", dispatch)
	}

	// The processor reports progress through the webhook.
	for _, status := range []string{"processing", "completed"} {
		cb := doJSON(router, http.MethodPost, "/api/v1/ingestion/status", "", map[string]any{
			"status":      status,
			"document_id": docID,
		})
		if cb.Code != http.StatusOK {
			t.Fatalf("callback %s: %d %s", status, cb.Code, cb.Body.String())
		}
	}

	statusResp := do(router, http.MethodGet, fmt.Sprintf("/api/v1/ingestion/document/%d", docID), token, "", nil)
	if statusResp.Code != http.StatusOK {
		t.Fatalf("status: %d", statusResp.Code)
	}
	var status struct {
		Status string `json:"status"`
	}
	decodeBody(t, statusResp, &status)
	if status.Status != "completed" {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	// A late regression callback must not thaw the terminal status.
	late := doJSON(router, http.MethodPost, "/api/v1/ingestion/status", "", map[string]any{
		"status":      "processing",
		"document_id": docID,
	})
	if late.Code != http.StatusConflict {
		t.Fatalf("expected 409 for late callback, got %d", late.Code)
	}

	del := do(router, http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", docID), token, "", nil)
	if del.Code != http.StatusOK {
		t.Fatalf("delete: %d %s", del.Code, del.Body.String())
	}
	gone := do(router, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", docID), token, "", nil)
	if gone.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", gone.Code)
	}
}

func TestRouterRejectsMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fp := newFakeProcessor(t)

	app, err := Build(testConfig(t, fp.URL))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	resp := do(app.Router, http.MethodGet, "/api/v1/documents", "", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	health := do(app.Router, http.MethodGet, "/api/v1/health", "", "", nil)
	if health.Code != http.StatusOK {
		t.Fatalf("health should be public, got %d", health.Code)
	}
}

func TestStatusListingRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fp := newFakeProcessor(t)

	app, err := Build(testConfig(t, fp.URL))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Only the POST webhook is public; the listing route sharing its
	// path prefix must still demand a bearer token.
	resp := do(app.Router, http.MethodGet, "/api/v1/ingestion/status/pending", "", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous status listing, got %d body=%s", resp.Code, resp.Body.String())
	}

	webhook := doJSON(app.Router, http.MethodPost, "/api/v1/ingestion/status", "", map[string]any{
		"status":      "processing",
		"document_id": 999,
	})
	if webhook.Code == http.StatusUnauthorized {
		t.Fatalf("webhook should stay public, got %d", webhook.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := testConfig(t, "http://localhost:5000")
	cfg.Env = "production"
	cfg.DatabaseURL = ""

	if _, err := Build(cfg); err == nil {
		t.Fatal("expected build to fail without DATABASE_URL in production")
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"taskfolio-api/session"
)

func TestStreamSendsInitialSnapshot(t *testing.T) {
	srv := newTestServer(t)
	srv.do(http.MethodPost, "/api/tasks", `{"title":"Buy milk"}`, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	req.Header.Set(echo.HeaderAuthorization, "Bearer test.test.test")
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") {
		t.Fatalf("expected an SSE data frame, got %q", body)
	}
	payload := strings.TrimPrefix(strings.TrimSpace(body), "data: ")
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (%s)", err, payload)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Title != "Buy milk" {
		t.Fatalf("snapshot missing task: %#v", snap.Tasks)
	}
	if len(snap.Projects) != 3 {
		t.Fatalf("snapshot missing seeded projects: %#v", snap.Projects)
	}
}

func TestStreamAcceptsTokenQueryParam(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream?token=test.test.test", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)

	if !strings.HasPrefix(rec.Body.String(), "data: ") {
		t.Fatalf("expected an SSE data frame, got %q", rec.Body.String())
	}
}

func TestStreamRequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rec := httptest.NewRecorder()
	srv.e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

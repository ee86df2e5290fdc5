package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/clinic/therapy/internal/platform/auth"
	"github.com/clinic/therapy/internal/platform/middleware"
)

func TestClient_GetDecodesAndForwardsHeaders(t *testing.T) {
	var gotAuth, gotRID, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get(middleware.RequestIDHeader)
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"pacote"}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", WithToken("fallback"))
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{Token: "operator-token"})
	ctx = middleware.WithRequestID(ctx, "rid-1")

	var out struct {
		Name string `json:"name"`
	}
	if err := c.Get(ctx, "/packages", url.Values{"patientId": {"p1"}}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "pacote" {
		t.Errorf("expected decoded body, got %q", out.Name)
	}
	if gotAuth != "Bearer operator-token" {
		t.Errorf("expected operator token, got %q", gotAuth)
	}
	if gotRID != "rid-1" {
		t.Errorf("expected forwarded request id, got %q", gotRID)
	}
	if gotQuery != "patientId=p1" {
		t.Errorf("unexpected query %q", gotQuery)
	}
}

func TestClient_FallbackTokenAndGeneratedRequestID(t *testing.T) {
	var gotAuth, gotRID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRID = r.Header.Get(middleware.RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL, WithToken("fallback"))
	if err := c.Delete(context.Background(), "/packages/1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer fallback" {
		t.Errorf("expected fallback token, got %q", gotAuth)
	}
	if gotRID == "" {
		t.Error("expected a generated request id")
	}
}

func TestClient_PostEncodesBody(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.Post(context.Background(), "/packages", map[string]int{"totalSessions": 8}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["totalSessions"] != float64(8) {
		t.Errorf("unexpected body %v", got)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"pacote inválido"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Patch(context.Background(), "/packages/1", map[string]string{}, nil)
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", apiErr.StatusCode)
	}
	if ServerMessage(err) != "pacote inválido" {
		t.Errorf("unexpected server message %q", ServerMessage(err))
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("400 must not be reported as unauthorized")
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"token expirado"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).Get(context.Background(), "/packages", nil, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if ServerMessage(err) != "token expirado" {
		t.Errorf("expected error field as message, got %q", ServerMessage(err))
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	err := New(srv.URL, WithTimeout(50*time.Millisecond)).Get(context.Background(), "/slow", nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestClient_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(srv.URL).Get(ctx, "/packages", nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestErrorMessage_PlainText(t *testing.T) {
	if got := errorMessage([]byte("  bad gateway \n")); got != "bad gateway" {
		t.Errorf("unexpected message %q", got)
	}
}

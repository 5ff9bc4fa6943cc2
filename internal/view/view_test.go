package view

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/watchpoint/watchpoint/internal/auth"
)

const testJWTSecret = "test-secret-for-view-tests"
const testUserID = "550e8400-e29b-41d4-a716-446655440000"
const testBaseURL = "https://watchpoint.example.com"

type mockStorage struct {
	downloadURL string
	downloadErr error
}

func (m *mockStorage) GenerateDownloadURL(_ context.Context, _ string, _ time.Duration) (string, error) {
	return m.downloadURL, m.downloadErr
}

func authenticatedRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	token, err := auth.GenerateAccessToken(testJWTSecret, testUserID)
	if err != nil {
		t.Fatalf("failed to generate access token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func newAuthMiddleware() func(http.Handler) http.Handler {
	return auth.NewHandler(nil, testJWTSecret, false).Middleware
}

func decodeResponse(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("failed to decode response %s: %v", body, err)
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"controlling_tanks/internal/service"

	"github.com/gin-gonic/gin"
)

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Token abc", "", false},
	}
	for _, tc := range cases {
		got, ok := bearerToken(tc.header)
		if got != tc.want || ok != tc.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

// protectedRouter wires the middleware in front of a handler that echoes the operator.
func protectedRouter(auth *mockAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&service.Service{Authorization: auth}, nil, nil)
	r := gin.New()
	r.POST("/pumps/:id/start", h.operatorIdMiddleware, func(c *gin.Context) {
		op, _ := c.Get(operatorCtxKey)
		c.JSON(http.StatusOK, gin.H{"operator": op})
	})
	return r
}

func TestOperatorIDMiddleware_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		parseErr error
		wantErr  string
	}{
		{"missing header", "", nil, errMissingAuth},
		{"wrong scheme", "Token abc", nil, errBadAuth},
		{"bearer without token", "Bearer", nil, errBadAuth},
		{"expired token", "Bearer stale", service.ErrInvalidToken, errBadToken},
		{"unexpected parse failure", "Bearer x", errors.New("boom"), errBadToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := protectedRouter(&mockAuth{parseErr: tc.parseErr})
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/pumps/p1/start", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401 (body=%s)", w.Code, w.Body.String())
			}
			var out struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Error != tc.wantErr {
				t.Fatalf("error = %q, want %q", out.Error, tc.wantErr)
			}
		})
	}
}

func TestOperatorIDMiddleware_SetsOperator(t *testing.T) {
	auth := &mockAuth{parseID: 123}
	r := protectedRouter(auth)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pumps/p1/start", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Operator int `json:"operator"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Operator != 123 {
		t.Fatalf("operator = %d, want 123", out.Operator)
	}
	if auth.lastParseToken != "good-token" {
		t.Fatalf("ParseToken got %q", auth.lastParseToken)
	}
}

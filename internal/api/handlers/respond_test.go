package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/abhishek2k21/purpletide-hospital-hub/internal/apperror"
	"github.com/abhishek2k21/purpletide-hospital-hub/internal/auth"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	invalid := &apperror.ValidationError{}
	invalid.Add("email", "is not a valid email address")

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", invalid, http.StatusUnprocessableEntity},
		{"bad request", badRequest("id must be a UUID"), http.StatusBadRequest},
		{"not found", apperror.NotFound("patient", "p-1"), http.StatusNotFound},
		{"conflict", apperror.Conflict("slot already booked"), http.StatusConflict},
		{"invalid state", apperror.InvalidState("already dispensed"), http.StatusConflict},
		{"forbidden", fmt.Errorf("wrap: %w", apperror.ErrForbidden), http.StatusForbidden},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{"expired session", fmt.Errorf("parse: %w", auth.ErrUnauthorized), http.StatusUnauthorized},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
			writeError(rec, req, zap.NewNop(), tt.err)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, zap.NewNop(), errors.New("password=hunter2 rejected"))
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Errorf("internal error leaked: %s", rec.Body.String())
	}
}

func TestValidationErrorListsFields(t *testing.T) {
	invalid := &apperror.ValidationError{}
	invalid.Add("first_name", "is required")
	invalid.Add("phone", "is not a valid phone number")

	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodPost, "/", nil), zap.NewNop(), invalid)

	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Fields) != 2 || body.Fields[0].Field != "first_name" {
		t.Errorf("fields = %+v", body.Fields)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"empty", "", "request body is empty"},
		{"malformed", "{", "invalid request body"},
		{"ok", `{"reason":"duplicate"}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var v struct {
				Reason string `json:"reason"`
			}
			err := decodeJSON(httptest.NewRecorder(), req, &v)
			if tt.wantErr == "" {
				if err != nil || v.Reason != "duplicate" {
					t.Fatalf("err = %v, v = %+v", err, v)
				}
				return
			}
			if !errors.Is(err, errBadRequest) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=15&bad=x&neg=-2", nil)
	if n, err := queryInt(req, "limit", 20); err != nil || n != 15 {
		t.Errorf("limit = %d, %v", n, err)
	}
	if n, err := queryInt(req, "missing", 20); err != nil || n != 20 {
		t.Errorf("missing = %d, %v", n, err)
	}
	for _, name := range []string{"bad", "neg"} {
		if _, err := queryInt(req, name, 20); !errors.Is(err, errBadRequest) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

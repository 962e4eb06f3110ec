package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isdelr/microservicios/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeValidator struct {
	calls    atomic.Int32
	validate func(ctx context.Context, token string) (Result, error)
}

func (f *fakeValidator) Validate(ctx context.Context, token string) (Result, error) {
	f.calls.Add(1)
	if f.validate != nil {
		return f.validate(ctx, token)
	}
	return Result{}, errors.New("not implemented")
}

func acceptAll(subject string) *fakeValidator {
	return &fakeValidator{validate: func(ctx context.Context, token string) (Result, error) {
		return Result{Subject: subject}, nil
	}}
}

// =============================================================================
// BearerToken
// =============================================================================

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "surrounding spaces trimmed", header: "Bearer   abc ", want: "abc"},
		{name: "empty header", header: "", wantErr: true},
		{name: "scheme only", header: "Bearer", wantErr: true},
		{name: "scheme and space only", header: "Bearer ", wantErr: true},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", wantErr: true},
		{name: "lowercase scheme", header: "bearer abc", wantErr: true},
		{name: "token without scheme", header: "abc.def.ghi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BearerToken(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, auth.ErrMissingToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Authorize / Middleware
// =============================================================================

func TestAuthorize_MissingTokenSkipsValidator(t *testing.T) {
	validator := acceptAll("alice")
	g := New(validator)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	_, err := g.Authorize(req)

	assert.ErrorIs(t, err, auth.ErrMissingToken)
	assert.Equal(t, int32(0), validator.calls.Load())
}

func TestAuthorize_ThreadsSubject(t *testing.T) {
	validator := &fakeValidator{validate: func(ctx context.Context, token string) (Result, error) {
		assert.Equal(t, "tok", token)
		return Result{Subject: "alice"}, nil
	}}
	g := New(validator)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer tok")

	authorized, err := g.Authorize(req)
	require.NoError(t, err)

	subject, ok := auth.SubjectFromContext(authorized.Context())
	assert.True(t, ok)
	assert.Equal(t, "alice", subject)
	assert.Equal(t, req.URL, authorized.URL)
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validErr   error
		wantStatus int
		wantReach  bool
		wantCalls  int32
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized, wantCalls: 0},
		{name: "wrong scheme", header: "Token abc", wantStatus: http.StatusUnauthorized, wantCalls: 0},
		{name: "rejected token", header: "Bearer bad", validErr: auth.ErrInvalidToken, wantStatus: http.StatusUnauthorized, wantCalls: 1},
		{name: "validator down", header: "Bearer tok", validErr: auth.ErrValidationUnavailable, wantStatus: http.StatusUnauthorized, wantCalls: 1},
		{name: "accepted", header: "Bearer tok", wantStatus: http.StatusOK, wantReach: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := &fakeValidator{validate: func(ctx context.Context, token string) (Result, error) {
				if tt.validErr != nil {
					return Result{}, tt.validErr
				}
				return Result{Subject: "alice"}, nil
			}}

			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				subject, _ := auth.SubjectFromContext(r.Context())
				assert.Equal(t, "alice", subject)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/products", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			New(validator).Middleware(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReach, reached)
			assert.Equal(t, tt.wantCalls, validator.calls.Load())

			if tt.wantStatus == http.StatusUnauthorized {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.NotEmpty(t, body["error"])
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			}
		})
	}
}

// =============================================================================
// RemoteValidator
// =============================================================================

func TestRemoteValidator_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, auth.ValidationPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(auth.ValidationResponse{Valid: true, User: "alice", Token: "tok", ExpiresAt: &exp})
	}))
	defer srv.Close()

	res, err := NewRemoteValidator(srv.URL+"/", time.Second).Validate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "alice", res.Subject)
	assert.True(t, exp.Equal(res.ExpiresAt))
}

func TestRemoteValidator_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "401 from validator",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(auth.ValidationResponse{Valid: false, Error: "token has expired"})
			},
			wantErr: auth.ErrInvalidToken,
		},
		{
			name: "500 from validator",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: auth.ErrInvalidToken,
		},
		{
			name: "200 but not valid",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(auth.ValidationResponse{Valid: false})
			},
			wantErr: auth.ErrInvalidToken,
		},
		{
			name: "200 with garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			wantErr: auth.ErrValidationUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewRemoteValidator(srv.URL, time.Second).Validate(context.Background(), "tok")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRemoteValidator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	_, err := NewRemoteValidator(srv.URL, 100*time.Millisecond).Validate(context.Background(), "tok")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, auth.ErrValidationUnavailable)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRemoteValidator_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemoteValidator(url, time.Second).Validate(context.Background(), "tok")
	assert.ErrorIs(t, err, auth.ErrValidationUnavailable)
}

func TestMiddleware_TimeoutDoesNotHang(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	g := New(NewRemoteValidator(srv.URL, 100*time.Millisecond))
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when validation times out")
	}))

	req := httptest.NewRequest(http.MethodGet, "/sales", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()

	start := time.Now()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
}

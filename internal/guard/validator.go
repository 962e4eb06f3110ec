package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/isdelr/microservicios/internal/auth"
)

// DefaultTimeout bounds each call to the login service.
const DefaultTimeout = 5 * time.Second

// Result is what a successful validation yields.
type Result struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Validator decides whether a bearer token is acceptable.
type Validator interface {
	Validate(ctx context.Context, token string) (Result, error)
}

// RemoteValidator validates tokens by calling the login service.
type RemoteValidator struct {
	endpoint string
	client   *http.Client
}

// NewRemoteValidator creates a validator for the login service at baseURL.
func NewRemoteValidator(baseURL string, timeout time.Duration) *RemoteValidator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RemoteValidator{
		endpoint: strings.TrimRight(baseURL, "/") + auth.ValidationPath,
		client:   &http.Client{Timeout: timeout},
	}
}

// Validate makes one blocking round trip to the validation endpoint.
// Transport errors and timeouts yield auth.ErrValidationUnavailable, any
// non-200 answer yields auth.ErrInvalidToken.
func (v *RemoteValidator) Validate(ctx context.Context, token string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", auth.ErrValidationUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", auth.ErrValidationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("%w: validator answered %d", auth.ErrInvalidToken, resp.StatusCode)
	}

	var body auth.ValidationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: decode validator response: %v", auth.ErrValidationUnavailable, err)
	}
	if !body.Valid || body.User == "" {
		return Result{}, auth.ErrInvalidToken
	}

	res := Result{Subject: body.User}
	if body.ExpiresAt != nil {
		res.ExpiresAt = *body.ExpiresAt
	}
	return res, nil
}

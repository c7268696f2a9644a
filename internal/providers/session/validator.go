package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"promptqueue/internal/infra"
)

// Validation outcomes. Callers are expected to match with errors.Is; every
// failure returned by Check wraps exactly one of these.
var (
	ErrExpired = errors.New("session expired")
	ErrBlocked = errors.New("account blocked")
	ErrNetwork = errors.New("session check unreachable")
	ErrInvalid = errors.New("invalid credential")
)

// Options controls how the validator is configured. BaseURL may be empty, in
// which case only the local credential checks run.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Validator checks a session credential. It is informational only: the queue
// never consults it, the presentation layer does before submitting work.
type Validator struct {
	baseURL    string
	httpClient *http.Client
	parser     *jwt.Parser
	logger     *infra.Logger
}

// New creates a validator.
func New(opts Options) *Validator {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Validator{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: httpClient,
		parser:     jwt.NewParser(),
		logger:     opts.Logger,
	}
}

// Check validates the credential. Malformed tokens and past expiry are caught
// locally; the remote status endpoint, when configured, reports blocked
// accounts. Transport failures surface as ErrNetwork so the caller can tell
// "could not check" apart from "checked and rejected".
func (v *Validator) Check(ctx context.Context, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return fmt.Errorf("%w: credential is empty", ErrInvalid)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := v.parser.ParseUnverified(credential, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return ErrExpired
	}

	if v.baseURL == "" {
		return nil
	}
	return v.remoteCheck(ctx, credential)
}

type statusResponse struct {
	Status string `json:"status"`
}

func (v *Validator) remoteCheck(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/v1/session/status", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn().Err(err).Msg("session: status endpoint unreachable")
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fallthrough to body inspection below
	case http.StatusUnauthorized:
		return ErrExpired
	case http.StatusForbidden:
		return ErrBlocked
	default:
		return fmt.Errorf("%w: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	var decoded statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch strings.ToLower(decoded.Status) {
	case "active", "valid", "ok":
		return nil
	case "blocked":
		return ErrBlocked
	case "expired":
		return ErrExpired
	default:
		return fmt.Errorf("%w: unrecognized status %q", ErrInvalid, decoded.Status)
	}
}

package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"credbroker/internal/domain"
)

// HTTPKVAdapter retrieves secrets from a Vault-style HTTP key-value
// endpoint: token header auth, GET /v1/<path>, data envelope response.
// Network timeouts are the adapter's own policy, passed through
// unchanged to the broker.
type HTTPKVAdapter struct {
	addr       string
	token      string
	httpClient *http.Client
}

func NewHTTPKVAdapter(timeout time.Duration) *HTTPKVAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPKVAdapter{
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *HTTPKVAdapter) Connect(ctx context.Context, target string, creds domain.AdapterCredentials) error {
	if target == "" {
		return fmt.Errorf("%w: kv addr is required", domain.ErrConnection)
	}
	if creds.Token == "" {
		return fmt.Errorf("%w: kv token is required", domain.ErrAuthentication)
	}
	a.addr = strings.TrimRight(target, "/")
	a.token = creds.Token

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.addr+"/v1/sys/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: kv backend unhealthy: status %d", domain.ErrConnection, resp.StatusCode)
	}
	return nil
}

func (a *HTTPKVAdapter) Retrieve(ctx context.Context, path string) ([]byte, error) {
	if a.addr == "" || a.token == "" {
		return nil, fmt.Errorf("%w: kv adapter not connected", domain.ErrConnection)
	}
	if path == "" || strings.Contains(path, "..") {
		return nil, fmt.Errorf("%w: kv path %q", domain.ErrPathDenied, path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.addr+"/v1/"+strings.TrimLeft(path, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	req.Header.Set("X-Vault-Token", a.token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", domain.ErrSecretNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: kv read rejected: status %d", domain.ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: kv read failed: status %d", domain.ErrRetrieval, resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding kv response: %v", domain.ErrRetrieval, err)
	}
	if len(envelope.Data.Data) == 0 {
		return nil, fmt.Errorf("%w: kv response missing data", domain.ErrRetrieval)
	}
	return []byte(envelope.Data.Data), nil
}

func (a *HTTPKVAdapter) CreateEphemeralAccount(context.Context, time.Duration, string) (domain.AdapterCredentials, error) {
	return domain.AdapterCredentials{}, fmt.Errorf("%w: kv adapter cannot mint accounts", domain.ErrNotImplemented)
}

func (a *HTTPKVAdapter) Cleanup() error {
	a.httpClient.CloseIdleConnections()
	a.addr = ""
	a.token = ""
	return nil
}

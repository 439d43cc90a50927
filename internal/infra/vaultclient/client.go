package vaultclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// maxErrorBody bounds how much of a failure response is embedded in the
	// returned error. Enough to diagnose, small enough not to bloat logs.
	maxErrorBody = 256

	defaultTimeout = 10 * time.Second
)

type Config struct {
	Addr     string
	Token    string
	RoleID   string
	SecretID string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Client talks to a transit/secrets service over its HTTP API. Signing,
// encryption and HMAC happen server-side; raw key material never crosses the
// wire. Authentication is either a static token or an AppRole login with a
// renewable lease.
type Client struct {
	addr       string
	roleID     string
	secretID   string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	token string

	// renewMu serializes lease renewal so only one renewal is ever in
	// flight; ordinary calls keep using the still-valid token concurrently.
	renewMu  sync.Mutex
	renewing bool

	stopRenew chan struct{}
	renewDone chan struct{}
}

func New(cfg Config) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("vault addr is required")
	}
	if cfg.Token == "" && (cfg.RoleID == "" || cfg.SecretID == "") {
		return nil, errors.New("vault token or approle credentials are required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		addr:       strings.TrimRight(cfg.Addr, "/"),
		roleID:     cfg.RoleID,
		secretID:   cfg.SecretID,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// APIError carries the HTTP status and a truncated response body from a
// failed call.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("vault %s failed: status %d: %s", e.Path, e.Status, e.Body)
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil {
		return errors.New("vault client is nil")
	}
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+path, body)
	if err != nil {
		return err
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("X-Vault-Token", token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Path: path, Body: truncateBody(raw)}
	}
	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// Sign signs payload under the named transit key and returns the raw
// signature bytes plus the key version the service used.
func (c *Client) Sign(ctx context.Context, key string, payload []byte) ([]byte, int, error) {
	if key == "" {
		return nil, 0, errors.New("transit key name is required")
	}
	var resp struct {
		Data struct {
			Signature string `json:"signature"`
		} `json:"data"`
	}
	body := map[string]any{
		"input":                base64.StdEncoding.EncodeToString(payload),
		"marshaling_algorithm": "asn1",
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transit/sign/"+key, body, &resp); err != nil {
		return nil, 0, err
	}
	return parseVaultValue(resp.Data.Signature)
}

// KeyInfo describes the highest version of a transit key.
type KeyInfo struct {
	LatestVersion int
	PublicKey     []byte
}

// GetKeyInfo reads the named transit key and selects the highest numeric key
// version's public key.
func (c *Client) GetKeyInfo(ctx context.Context, key string) (KeyInfo, error) {
	if key == "" {
		return KeyInfo{}, errors.New("transit key name is required")
	}
	var resp struct {
		Data struct {
			Keys map[string]struct {
				PublicKey string `json:"public_key"`
			} `json:"keys"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/transit/keys/"+key, nil, &resp); err != nil {
		return KeyInfo{}, err
	}
	if len(resp.Data.Keys) == 0 {
		return KeyInfo{}, errors.New("transit key has no versions")
	}
	versions := make([]int, 0, len(resp.Data.Keys))
	for v := range resp.Data.Keys {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		versions = append(versions, n)
	}
	if len(versions) == 0 {
		return KeyInfo{}, errors.New("transit key versions are not numeric")
	}
	sort.Ints(versions)
	latest := versions[len(versions)-1]
	pubB64 := resp.Data.Keys[strconv.Itoa(latest)].PublicKey
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil {
		return KeyInfo{}, fmt.Errorf("decode transit public key: %w", err)
	}
	return KeyInfo{LatestVersion: latest, PublicKey: pub}, nil
}

// Encrypt envelope-encrypts plaintext under the named transit key. The
// returned ciphertext is the service's opaque "vault:vN:..." form.
func (c *Client) Encrypt(ctx context.Context, key string, plaintext []byte) (string, error) {
	if key == "" {
		return "", errors.New("transit key name is required")
	}
	var resp struct {
		Data struct {
			Ciphertext string `json:"ciphertext"`
		} `json:"data"`
	}
	body := map[string]any{"plaintext": base64.StdEncoding.EncodeToString(plaintext)}
	if err := c.do(ctx, http.MethodPost, "/v1/transit/encrypt/"+key, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.Ciphertext == "" {
		return "", errors.New("transit encrypt returned empty ciphertext")
	}
	return resp.Data.Ciphertext, nil
}

func (c *Client) Decrypt(ctx context.Context, key string, ciphertext string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("transit key name is required")
	}
	var resp struct {
		Data struct {
			Plaintext string `json:"plaintext"`
		} `json:"data"`
	}
	body := map[string]any{"ciphertext": ciphertext}
	if err := c.do(ctx, http.MethodPost, "/v1/transit/decrypt/"+key, body, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Data.Plaintext)
}

// HMAC computes a keyed digest of input under the named transit key.
func (c *Client) HMAC(ctx context.Context, key string, input []byte) ([]byte, error) {
	if key == "" {
		return nil, errors.New("transit key name is required")
	}
	var resp struct {
		Data struct {
			HMAC string `json:"hmac"`
		} `json:"data"`
	}
	body := map[string]any{"input": base64.StdEncoding.EncodeToString(input)}
	if err := c.do(ctx, http.MethodPost, "/v1/transit/hmac/"+key, body, &resp); err != nil {
		return nil, err
	}
	mac, _, err := parseVaultValue(resp.Data.HMAC)
	return mac, err
}

// Health probes the service. Standby, sealed and uninitialized states are
// mapped to 200 so the probe only fails when the service is unreachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/sys/health?standbyok=true&sealedcode=200&uninitcode=200", nil, nil)
}

// parseVaultValue splits the service's "vault:v<N>:<base64>" encoding into
// raw bytes and the key version.
func parseVaultValue(value string) ([]byte, int, error) {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 || parts[0] != "vault" || !strings.HasPrefix(parts[1], "v") {
		return nil, 0, fmt.Errorf("unexpected transit value format: %q", value)
	}
	version, err := strconv.Atoi(strings.TrimPrefix(parts[1], "v"))
	if err != nil {
		return nil, 0, fmt.Errorf("unexpected transit key version: %q", parts[1])
	}
	raw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, 0, fmt.Errorf("decode transit value: %w", err)
	}
	return raw, version, nil
}

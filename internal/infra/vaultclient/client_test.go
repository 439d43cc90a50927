package vaultclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{Addr: srv.URL, Token: "test-token"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestSign_ParsesVersionedSignature(t *testing.T) {
	sig := []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transit/sign/certification-signing" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Vault-Token"); got != "test-token" {
			t.Errorf("missing token header, got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["marshaling_algorithm"] != "asn1" {
			t.Errorf("expected asn1 marshaling, got %v", body["marshaling_algorithm"])
		}
		fmt.Fprintf(w, `{"data":{"signature":"vault:v3:%s"}}`, base64.StdEncoding.EncodeToString(sig))
	}))

	got, version, err := client.Sign(context.Background(), "certification-signing", []byte("payload"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if version != 3 {
		t.Fatalf("expected key version 3, got %d", version)
	}
	if string(got) != string(sig) {
		t.Fatal("signature bytes mismatch")
	}
}

func TestSign_ErrorEmbedsStatusAndTruncatedBody(t *testing.T) {
	long := strings.Repeat("x", 1000)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, long)
	}))

	_, _, err := client.Sign(context.Background(), "k", []byte("payload"))
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", apiErr.Status)
	}
	if len(apiErr.Body) > maxErrorBody {
		t.Fatalf("body not truncated: %d bytes", len(apiErr.Body))
	}
}

func TestGetKeyInfo_SelectsHighestVersion(t *testing.T) {
	pub2 := base64.StdEncoding.EncodeToString([]byte("public-key-version-two-of-32-byt"))
	pub10 := base64.StdEncoding.EncodeToString([]byte("public-key-version-ten-of-32-byt"))
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"keys":{"2":{"public_key":"%s"},"10":{"public_key":"%s"}}}}`, pub2, pub10)
	}))

	info, err := client.GetKeyInfo(context.Background(), "certification-signing")
	if err != nil {
		t.Fatalf("key info: %v", err)
	}
	if info.LatestVersion != 10 {
		t.Fatalf("expected version 10, got %d", info.LatestVersion)
	}
	if string(info.PublicKey) != "public-key-version-ten-of-32-byt" {
		t.Fatal("selected wrong public key")
	}
}

func TestEncryptDecrypt_RoundTripThroughService(t *testing.T) {
	stored := make(map[string]string)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/transit/encrypt/"):
			ct := "vault:v1:" + base64.StdEncoding.EncodeToString([]byte(body["plaintext"]))
			stored[ct] = body["plaintext"]
			fmt.Fprintf(w, `{"data":{"ciphertext":"%s"}}`, ct)
		case strings.HasPrefix(r.URL.Path, "/v1/transit/decrypt/"):
			fmt.Fprintf(w, `{"data":{"plaintext":"%s"}}`, stored[body["ciphertext"]])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ct, err := client.Encrypt(context.Background(), "k", []byte("secret payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !strings.HasPrefix(ct, "vault:v1:") {
		t.Fatalf("unexpected ciphertext form %q", ct)
	}
	pt, err := client.Decrypt(context.Background(), "k", ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(pt) != "secret payload" {
		t.Fatalf("round trip mismatch: %q", pt)
	}
}

func TestHMAC_ParsesValue(t *testing.T) {
	mac := []byte("0123456789abcdef0123456789abcdef")
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"hmac":"vault:v1:%s"}}`, base64.StdEncoding.EncodeToString(mac))
	}))
	got, err := client.HMAC(context.Background(), "audit", []byte("entry"))
	if err != nil {
		t.Fatalf("hmac: %v", err)
	}
	if string(got) != string(mac) {
		t.Fatal("hmac bytes mismatch")
	}
}

func TestRenewLease_ReauthenticatesOnFailure(t *testing.T) {
	var logins atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/token/renew-self":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"errors":["permission denied"]}`)
		case "/v1/auth/approle/login":
			logins.Add(1)
			fmt.Fprint(w, `{"auth":{"client_token":"fresh-token","lease_duration":600,"renewable":true}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := New(Config{Addr: srv.URL, RoleID: "role", SecretID: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := client.RenewLease(context.Background()); err != nil {
		t.Fatalf("renew: %v", err)
	}
	if logins.Load() != 2 {
		t.Fatalf("expected re-login after failed renewal, got %d logins", logins.Load())
	}
	if client.currentToken() != "fresh-token" {
		t.Fatal("token not replaced after re-login")
	}
}

func TestClose_RevocationFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/auth/approle/login":
			fmt.Fprint(w, `{"auth":{"client_token":"tok","lease_duration":600,"renewable":true}}`)
		case "/v1/auth/token/revoke-self":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := New(Config{Addr: srv.URL, RoleID: "role", SecretID: "secret"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	// Must not panic or block even though revocation fails.
	client.Close(context.Background())
}

func TestHealth_UsesLenientQuery(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sys/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("standbyok") != "true" || q.Get("sealedcode") != "200" || q.Get("uninitcode") != "200" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusOK)
	}))
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

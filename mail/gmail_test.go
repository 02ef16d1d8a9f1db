package mail

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestNewGmailRetrieverUsesBaseClient(t *testing.T) {
	dir := t.TempDir()
	creds := writeFile(t, dir, "credentials.json", `{
		"installed": {
			"client_id": "id",
			"client_secret": "secret",
			"auth_uri": "https://accounts.google.com/o/oauth2/auth",
			"token_uri": "https://oauth2.googleapis.com/token"
		}
	}`)
	token := writeFile(t, dir, "token.json", `{
		"access_token": "tok",
		"token_type": "Bearer",
		"refresh_token": "refresh",
		"expiry": "2099-01-01T00:00:00Z"
	}`)

	base := &http.Client{Timeout: 20 * time.Second}
	r, err := NewGmailRetriever(context.Background(), creds, token, base, nil)
	if err != nil {
		t.Fatalf("NewGmailRetriever: %v", err)
	}
	// Requests must never hang forever on a stalled Gmail endpoint.
	if r.client.Timeout != base.Timeout {
		t.Fatalf("client timeout %v, want %v", r.client.Timeout, base.Timeout)
	}
}

func TestNewGmailRetrieverMissingCredentialSection(t *testing.T) {
	dir := t.TempDir()
	creds := writeFile(t, dir, "credentials.json", `{}`)
	token := writeFile(t, dir, "token.json", `{"access_token": "tok"}`)

	base := &http.Client{Timeout: time.Second}
	if _, err := NewGmailRetriever(context.Background(), creds, token, base, nil); err == nil {
		t.Fatal("expected error for credentials without installed/web section")
	}
}

func TestLoadTokenBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "token.json", `not json`)
	if _, err := loadToken(path); err == nil {
		t.Fatal("expected error for malformed token file")
	}
}

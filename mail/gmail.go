// Package mail retrieves mail-delivered verification codes. The Gmail
// retriever reads a single recipient's mailbox through the REST API with a
// stored OAuth refresh token; extraction is layered (platform pattern,
// generic numeric patterns, optional LLM assist) and every candidate is
// re-validated by the same code format before use.
package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/oauth2"

	"phone_lister/models"
)

const gmailAPIBase = "https://gmail.googleapis.com/gmail/v1/users/me"

// Retriever obtains the most recent verification code for a platform.
// Implementations fail silently: transport errors are logged and reported
// as no code found.
type Retriever interface {
	Fetch(ctx context.Context, policy models.TwoFactorPolicy, recipient string, since time.Time) (string, bool)
}

type GmailRetriever struct {
	client *http.Client
	llm    LLMExtractor // optional, may be nil
}

// NewGmailRetriever builds a retriever from stored OAuth material. The
// credentials file carries client id/secret, the token file the refresh
// token, both at provider-specified paths. API calls and token refreshes go
// through base, which also bounds every request's duration.
func NewGmailRetriever(ctx context.Context, credentialsPath, tokenPath string, base *http.Client, llm LLMExtractor) (*GmailRetriever, error) {
	conf, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("load gmail credentials: %w", err)
	}
	tok, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load gmail token: %w", err)
	}
	client := conf.Client(context.WithValue(ctx, oauth2.HTTPClient, base), tok)
	// oauth2 reuses base's transport but not its timeout.
	client.Timeout = base.Timeout
	return &GmailRetriever{client: client, llm: llm}, nil
}

func (r *GmailRetriever) Fetch(ctx context.Context, policy models.TwoFactorPolicy, recipient string, since time.Time) (string, bool) {
	query := buildQuery(policy)

	ids, err := r.listMessages(ctx, query, 5)
	if err != nil {
		log.Printf("mail: list failed for %s: %v", recipient, err)
		return "", false
	}

	for _, id := range ids {
		body, internalDate, err := r.getMessage(ctx, id)
		if err != nil {
			log.Printf("mail: get %s failed: %v", id, err)
			continue
		}
		if internalDate.Before(since) {
			continue
		}

		if code := ExtractCode(body, policy.CodePattern); code != "" {
			return code, true
		}
		if r.llm != nil {
			if code, err := r.llm.Extract(ctx, body); err == nil && AcceptCode(code) {
				return strings.ToUpper(strings.TrimSpace(code)), true
			}
		}
	}
	return "", false
}

func buildQuery(policy models.TwoFactorPolicy) string {
	parts := []string{}
	if policy.SenderPattern != "" {
		parts = append(parts, "from:"+policy.SenderPattern)
	}
	parts = append(parts, "newer_than:1d")
	terms := policy.SubjectTerms
	if len(terms) == 0 {
		terms = []string{"verification", "code", "authenticate", "login", "security"}
	}
	parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	return strings.Join(parts, " ")
}

func (r *GmailRetriever) listMessages(ctx context.Context, query string, max int) ([]string, error) {
	u := fmt.Sprintf("%s/messages?q=%s&maxResults=%d", gmailAPIBase, url.QueryEscape(query), max)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gmail list: status %d", resp.StatusCode)
	}

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

type gmailPart struct {
	MimeType string `json:"mimeType"`
	Body     struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPart `json:"parts"`
}

func (r *GmailRetriever) getMessage(ctx context.Context, id string) (string, time.Time, error) {
	u := fmt.Sprintf("%s/messages/%s?format=full", gmailAPIBase, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("gmail get: status %d", resp.StatusCode)
	}

	var msg struct {
		InternalDate string `json:"internalDate"`
		Snippet      string `json:"snippet"`
		Payload      gmailPart
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", time.Time{}, err
	}

	var when time.Time
	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil {
		when = time.UnixMilli(ms)
	}

	body := flattenPart(msg.Payload)
	if body == "" {
		body = msg.Snippet
	}
	return body, when, nil
}

// flattenPart walks the MIME tree, preferring text/plain and stripping
// markup from HTML parts.
func flattenPart(p gmailPart) string {
	if p.Body.Data != "" {
		raw, err := base64.RawURLEncoding.DecodeString(p.Body.Data)
		if err != nil {
			// Some senders pad the url-safe body.
			if raw, err = base64.URLEncoding.DecodeString(p.Body.Data); err != nil {
				return ""
			}
		}
		text := string(raw)
		if strings.Contains(p.MimeType, "html") {
			return StripHTML(text)
		}
		return text
	}
	var plain, html string
	for _, child := range p.Parts {
		s := flattenPart(child)
		if s == "" {
			continue
		}
		if strings.Contains(child.MimeType, "plain") && plain == "" {
			plain = s
		} else if html == "" {
			html = s
		}
	}
	if plain != "" {
		return plain
	}
	return html
}

// StripHTML reduces an HTML mail body to its visible text.
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script,style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func loadOAuthConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Installed *installedCreds `json:"installed"`
		Web       *installedCreds `json:"web"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	creds := wrapper.Installed
	if creds == nil {
		creds = wrapper.Web
	}
	if creds == nil {
		return nil, fmt.Errorf("no installed/web section in %s", path)
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  creds.AuthURI,
			TokenURL: creds.TokenURI,
		},
		Scopes: []string{"https://www.googleapis.com/auth/gmail.readonly"},
	}, nil
}

type installedCreds struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURI      string `json:"auth_uri"`
	TokenURI     string `json:"token_uri"`
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

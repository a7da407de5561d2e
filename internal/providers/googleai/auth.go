package googleai

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	scopeCloudPlatform = "https://www.googleapis.com/auth/cloud-platform"
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	defaultTokenURI    = "https://oauth2.googleapis.com/token"
)

// serviceAccount is the subset of the credentials file the token
// source needs.
type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// tokenSource mints and caches service-account access tokens.
type tokenSource struct {
	creds  serviceAccount
	key    *rsa.PrivateKey
	client *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(credentialsFile string) (*tokenSource, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("error reading credentials file: %w", err)
	}

	var creds serviceAccount
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("error parsing credentials file: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, fmt.Errorf("credentials file missing client_email or private_key")
	}
	if creds.TokenURI == "" {
		creds.TokenURI = defaultTokenURI
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(creds.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("error parsing service account key: %w", err)
	}

	return &tokenSource{
		creds:  creds,
		key:    key,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Token returns a cached access token, refreshing when it is about to
// expire.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && time.Now().Before(ts.expires) {
		return ts.token, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   ts.creds.ClientEmail,
		"scope": scopeCloudPlatform,
		"aud":   ts.creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("error signing token claims: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", grantTypeJWTBearer)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error exchanging token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading token response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("token exchange failed (status %d): %s", resp.StatusCode, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("error decoding token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no access token")
	}

	ts.token = token.AccessToken
	ts.expires = now.Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)

	return ts.token, nil
}

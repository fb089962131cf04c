package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication constants.
const (
	maxTokenLength     = 255
	minTokenLength     = 40
	classicTokenLength = 40
	maxAppID           = 999999999
	filePermReadOnly   = 0o400
	filePermOwnerRW    = 0o600
	jwtLifetime        = 10 * time.Minute
	jwtRefreshMargin   = time.Minute
	installationMargin = 5 * time.Minute
)

type installationToken struct {
	expiry time.Time
	token  string
}

// generateJWT generates a JWT for GitHub App authentication.
func generateJWT(appID string, privateKey []byte, now time.Time) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		if key, ok = parsedKey.(*rsa.PrivateKey); !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	claims := jwt.MapClaims{
		// Backdated to tolerate clock drift, as GitHub recommends.
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// setupTokenAuth resolves a personal token from cfg, GITHUB_TOKEN, or the gh CLI.
func (c *Client) setupTokenAuth(ctx context.Context, token string) error {
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		out, err := exec.CommandContext(ctx, "gh", "auth", "token").Output()
		if err != nil {
			return fmt.Errorf("failed to get GitHub token: %w", err)
		}
		token = strings.TrimSpace(string(out))
	}
	if err := validateToken(token); err != nil {
		return err
	}
	c.token = token
	c.logger.Info("Using personal access token authentication", "component", "auth")
	return nil
}

// setupAppAuth loads App credentials and signs the first JWT.
func (c *Client) setupAppAuth(appID, appKeyPath string) error {
	creds, err := resolveAppCredentials(appID, appKeyPath)
	if err != nil {
		return err
	}
	if err := validateAppID(creds.appID); err != nil {
		return err
	}
	privateKey, err := loadPrivateKey(creds.privateKeyContent, creds.keyPath)
	if err != nil {
		return err
	}

	now := time.Now()
	token, err := generateJWT(creds.appID, privateKey, now)
	if err != nil {
		return fmt.Errorf("failed to generate JWT: %w", err)
	}
	c.isAppAuth = true
	c.appID = creds.appID
	c.privateKeyContent = privateKey
	c.token = token
	c.tokenExpiry = now.Add(jwtLifetime - jwtRefreshMargin)
	c.logger.Info("Successfully generated JWT for GitHub App", "component", "auth", "app_id", creds.appID)
	return nil
}

type appCredentials struct {
	appID             string
	keyPath           string
	privateKeyContent []byte
}

// resolveAppCredentials resolves app credentials from arguments or environment variables.
// Key content in GITHUB_APP_KEY takes precedence over a key file in GITHUB_APP_KEY_PATH.
func resolveAppCredentials(appID, appKeyPath string) (*appCredentials, error) {
	if appID == "" {
		appID = os.Getenv("GITHUB_APP_ID")
	}

	var content []byte
	if appKeyPath == "" {
		if key := os.Getenv("GITHUB_APP_KEY"); key != "" {
			content = []byte(key)
		} else {
			appKeyPath = os.Getenv("GITHUB_APP_KEY_PATH")
		}
	}

	if appID == "" {
		return nil, errors.New("GitHub App ID is required: use --app-id or set GITHUB_APP_ID")
	}
	if len(content) == 0 && appKeyPath == "" {
		return nil, errors.New("GitHub App private key is required: use --app-key-path, " +
			"set GITHUB_APP_KEY (key content) or GITHUB_APP_KEY_PATH (file path)")
	}
	return &appCredentials{appID: appID, keyPath: appKeyPath, privateKeyContent: content}, nil
}

func validateAppID(appID string) error {
	n, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("GitHub App ID must be numeric: %w", err)
	}
	if n <= 0 || n > maxAppID {
		return errors.New("GitHub App ID out of valid range")
	}
	return nil
}

// loadPrivateKey loads the private key from content or file path.
func loadPrivateKey(content []byte, keyPath string) ([]byte, error) {
	key := content
	if len(key) == 0 {
		if keyPath == "" {
			return nil, errors.New("no private key provided (neither content nor path)")
		}
		var err error
		if key, err = readPrivateKeyFile(keyPath); err != nil {
			return nil, err
		}
	}
	if !bytes.Contains(key, []byte("BEGIN RSA PRIVATE KEY")) && !bytes.Contains(key, []byte("BEGIN PRIVATE KEY")) {
		return nil, errors.New("private key does not appear to be a valid PEM private key")
	}
	return key, nil
}

// readPrivateKeyFile reads a private key file that only its owner can read.
func readPrivateKeyFile(keyPath string) ([]byte, error) {
	clean := filepath.Clean(keyPath)
	if !filepath.IsAbs(clean) {
		return nil, errors.New("private key path must be absolute")
	}
	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("cannot access private key file: %w", err)
	}
	if info.IsDir() {
		return nil, errors.New("private key path must be a file, not a directory")
	}
	if perm := info.Mode().Perm(); perm != filePermOwnerRW && perm != filePermReadOnly {
		return nil, fmt.Errorf("private key file has insecure permissions %04o (must be 0600 or 0400)", perm)
	}
	return os.ReadFile(clean)
}

// validateToken checks the shape of a personal access token.
func validateToken(token string) error {
	if token == "" {
		return errors.New("no GitHub token found")
	}
	if len(token) > maxTokenLength || len(token) < minTokenLength {
		return errors.New("invalid token length")
	}
	for _, prefix := range []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"} {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}
	if len(token) != classicTokenLength {
		return errors.New("invalid token format")
	}
	for _, r := range token {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return errors.New("invalid classic token format")
		}
	}
	return nil
}

// authorization returns the Authorization header value for a request against owner/repo.
func (c *Client) authorization(ctx context.Context, owner, repo string) (string, error) {
	if !c.isAppAuth {
		return "token " + c.token, nil
	}
	if owner == "" {
		jwtToken, err := c.currentJWT()
		if err != nil {
			return "", err
		}
		return "Bearer " + jwtToken, nil
	}
	token, err := c.installationToken(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return "token " + token, nil
}

// currentJWT returns the App JWT, re-signing it shortly before it expires.
func (c *Client) currentJWT() (string, error) {
	c.tokenMutex.RLock()
	if time.Now().Before(c.tokenExpiry) {
		defer c.tokenMutex.RUnlock()
		return c.token, nil
	}
	c.tokenMutex.RUnlock()

	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	now := time.Now()
	if now.Before(c.tokenExpiry) {
		return c.token, nil
	}
	token, err := generateJWT(c.appID, c.privateKeyContent, now)
	if err != nil {
		return "", fmt.Errorf("failed to generate JWT for refresh: %w", err)
	}
	c.token = token
	c.tokenExpiry = now.Add(jwtLifetime - jwtRefreshMargin)
	c.logger.Info("Refreshed GitHub App JWT", "component", "auth")
	return token, nil
}

// installationToken returns a cached or freshly minted installation token for the
// App installation covering owner/repo.
func (c *Client) installationToken(ctx context.Context, owner, repo string) (string, error) {
	key := owner + "/" + repo
	c.tokenMutex.RLock()
	cached, ok := c.installationTokens[key]
	c.tokenMutex.RUnlock()
	if ok && time.Now().Before(cached.expiry) {
		return cached.token, nil
	}

	var installation struct {
		ID int64 `json:"id"`
	}
	if err := c.getJSON(ctx, c.repoURL(owner, repo, "/installation"), "", "", &installation); err != nil {
		return "", fmt.Errorf("failed to find App installation for %s (is the app installed?): %w", key, err)
	}

	apiURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.apiBase, installation.ID)
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, "", "", nil) //nolint:bodyclose // closed below
	if err != nil {
		return "", fmt.Errorf("failed to get installation token: %w", err)
	}
	defer c.drainAndCloseBody(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("failed to create installation token: %w", statusError(resp))
	}

	var tokenResp struct {
		ExpiresAt time.Time `json:"expires_at"`
		Token     string    `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", errors.New("received empty installation token")
	}

	c.tokenMutex.Lock()
	c.installationTokens[key] = installationToken{token: tokenResp.Token, expiry: tokenResp.ExpiresAt.Add(-installationMargin)}
	c.tokenMutex.Unlock()
	c.logger.InfoContext(ctx, "Created installation access token", "component", "auth",
		"repo", key, "installation_id", installation.ID, "expires_at", tokenResp.ExpiresAt.Format(time.RFC3339))
	return tokenResp.Token, nil
}

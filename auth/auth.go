package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vnflow/config"
	"vnflow/logger"
)

// DefaultBaseURL is the production user-service endpoint. The issued token is
// valid for roughly eight hours; there is no refresh path, an expired session
// requires a restart.
const DefaultBaseURL = "https://services.entrade.com.vn"

const (
	loginPath   = "/dnse-user-service/api/auth"
	accountPath = "/dnse-user-service/api/me"
)

// Session holds the credentials used for the broker connection: the bearer
// token becomes the MQTT password and the investor id the MQTT username.
type Session struct {
	Token      string
	InvestorID string
}

// AuthError reports a non-2xx response from the user service. Authentication
// failures are fatal at startup and never retried.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed with status %d: %s", e.Status, e.Body)
}

// Client authenticates against the provider user service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Log
}

// NewClient creates an authentication client. An empty baseURL selects the
// production endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.GetLogger(),
	}
}

// Login exchanges the credentials for a session in two sequential calls:
// username/password for a JWT token, then the token for the investor id.
func (c *Client) Login(ctx context.Context, creds config.Credentials) (Session, error) {
	log := c.log.WithComponent("auth")

	token, err := c.fetchToken(ctx, creds)
	if err != nil {
		return Session{}, err
	}

	investorID, err := c.fetchInvestorID(ctx, token)
	if err != nil {
		return Session{}, err
	}

	log.WithFields(logger.Fields{"investor_id": investorID}).Info("authenticated with user service")
	return Session{Token: token, InvestorID: investorID}, nil
}

func (c *Client) fetchToken(ctx context.Context, creds config.Credentials) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Token string `json:"token"`
	}
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	if body.Token == "" {
		return "", fmt.Errorf("user service returned an empty token")
	}
	return body.Token, nil
}

func (c *Client) fetchInvestorID(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+accountPath, nil)
	if err != nil {
		return "", fmt.Errorf("create account request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var body struct {
		InvestorID string `json:"investorId"`
	}
	if err := c.do(req, &body); err != nil {
		return "", err
	}
	if body.InvestorID == "" {
		return "", fmt.Errorf("user service returned an empty investor id")
	}
	return body.InvestorID, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("user service request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &AuthError{Status: res.StatusCode, Body: string(bytes.TrimSpace(body))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode user service response: %w", err)
	}
	return nil
}

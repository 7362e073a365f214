// Package sentinel is the outbound client for the Sentinel gateway. It
// authenticates with mutual TLS plus a short-lived HS256 JWT; testing mode
// skips the TLS material so local stacks can run without certificates.
package sentinel

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/irislabs/iris/config"
	"github.com/irislabs/iris/logger"
)

const (
	defaultTimeout = 30 * time.Second
	maxAttempts    = 3
	backoffBase    = time.Second
	jwtExpiry      = 300 * time.Second
)

var (
	// ErrAuth means the gateway rejected our identity. Never retried.
	ErrAuth = errors.New("sentinel: authentication failed")
)

// Client talks to the Sentinel gateway on behalf of this satellite.
type Client struct {
	baseURL     string
	satelliteID string
	secret      string
	http        *http.Client
	log         logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a gateway client from config. Production mode requires the
// certificate, key, and CA paths to exist; testing mode uses plain HTTP.
func New(cfg *config.Settings, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Noop()
	}

	c := &Client{
		baseURL:     strings.TrimRight(cfg.SentinelURL, "/"),
		satelliteID: cfg.SatelliteID,
		secret:      cfg.GetSatelliteSecret(),
		log:         log,
		now:         time.Now,
		sleep:       sleepCtx,
	}

	if cfg.TestingMode {
		c.http = &http.Client{Timeout: defaultTimeout}
		log.Info("sentinel client ready", "mode", "testing", "url", c.baseURL)
		return c, nil
	}

	tlsConfig, err := loadTLS(cfg.SentinelCertPath, cfg.SentinelKeyPath, cfg.SentinelCAPath)
	if err != nil {
		return nil, err
	}
	c.http = &http.Client{
		Timeout:   defaultTimeout,
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
	}
	log.Info("sentinel client ready", "mode", "mtls", "url", c.baseURL)
	return c, nil
}

func loadTLS(certPath, keyPath, caPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caPEM, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in %s", caPath)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// token mints a fresh short-lived JWT identifying this satellite.
func (c *Client) token() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": c.satelliteID,
		"iat": now.Unix(),
		"exp": now.Add(jwtExpiry).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secret))
}

// Request routes an action to a target service through the gateway.
func (c *Client) Request(ctx context.Context, target, action string, payload map[string]any) (map[string]any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body := map[string]any{
		"target":  target,
		"action":  action,
		"payload": payload,
	}
	return c.do(ctx, http.MethodPost, "/request", body)
}

// Health fetches the gateway's health document.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, http.MethodGet, "/health", nil)
}

// Ping reports whether the gateway is reachable and accepts our identity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// do sends an authenticated request with exponential backoff. Auth failures
// and other 4xx responses are terminal; timeouts, connection errors, and 5xx
// responses are retried.
func (c *Client) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := backoffBase * time.Duration(1<<(attempt-1))
			c.log.Warn("sentinel retry", "attempt", attempt, "backoff", backoff, "error", lastErr)
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		}

		result, retryable, err := c.attempt(ctx, method, path, payload)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (map[string]any, bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, err
	}

	token, err := c.token()
	if err != nil {
		return nil, false, fmt.Errorf("failed to sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Satellite-ID", c.satelliteID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("sentinel request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, false, ErrAuth
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("sentinel server error %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("sentinel error %d", resp.StatusCode)
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("failed to decode sentinel response: %w", err)
	}
	return result, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

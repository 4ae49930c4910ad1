// Package xero connects employers to their Xero organisation so closed
// payroll batches can be journalled externally.
package xero

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
)

const connectionsURL = "https://api.xero.com/connections"

var xeroEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.xero.com/identity/connect/authorize",
	TokenURL: "https://identity.xero.com/connect/token",
}

// ErrNotConnected indicates no stored connection for the employer.
var ErrNotConnected = errors.New("xero: employer not connected")

// Connection is a stored per-employer token set.
type Connection struct {
	EmployerID   uuid.UUID
	TenantID     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Tenant is one organisation reachable with an access token.
type Tenant struct {
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

// Client drives the OAuth2 authorization-code flow and persists tokens.
type Client struct {
	oauth *oauth2.Config
	pool  *pgxpool.Pool
	http  *http.Client
}

// NewClient constructs a Client.
func NewClient(clientID, clientSecret, redirectURL string, pool *pgxpool.Pool) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     xeroEndpoint,
			Scopes:       []string{"offline_access", "accounting.transactions", "payroll.payruns"},
		},
		pool: pool,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthorizeURL returns the consent URL for an employer-scoped state value.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeAndStore swaps the authorization code for tokens and persists
// them against the employer.
func (c *Client) ExchangeAndStore(ctx context.Context, employerID uuid.UUID, code string) error {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("xero: exchange code: %w", err)
	}

	tenantID := ""
	tenants, err := c.tenants(ctx, token)
	if err == nil && len(tenants) > 0 {
		tenantID = tenants[0].TenantID
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO xero_connections (employer_id, tenant_id, access_token, refresh_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employer_id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		employerID, tenantID, token.AccessToken, token.RefreshToken, token.Expiry)
	return err
}

// ConnectionFor loads the stored connection, refreshing the token first
// when it has expired.
func (c *Client) ConnectionFor(ctx context.Context, employerID uuid.UUID) (Connection, error) {
	conn, err := c.load(ctx, employerID)
	if err != nil {
		return Connection{}, err
	}
	if time.Until(conn.ExpiresAt) > time.Minute {
		return conn, nil
	}

	source := c.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.ExpiresAt,
	})
	token, err := source.Token()
	if err != nil {
		return Connection{}, fmt.Errorf("xero: refresh token: %w", err)
	}
	conn.AccessToken = token.AccessToken
	conn.RefreshToken = token.RefreshToken
	conn.ExpiresAt = token.Expiry

	_, err = c.pool.Exec(ctx, `
		UPDATE xero_connections
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE employer_id = $1`,
		employerID, conn.AccessToken, conn.RefreshToken, conn.ExpiresAt)
	if err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// Disconnect removes the stored connection.
func (c *Client) Disconnect(ctx context.Context, employerID uuid.UUID) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM xero_connections WHERE employer_id = $1`, employerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) load(ctx context.Context, employerID uuid.UUID) (Connection, error) {
	var conn Connection
	err := c.pool.QueryRow(ctx, `
		SELECT employer_id, tenant_id, access_token, refresh_token, expires_at
		FROM xero_connections WHERE employer_id = $1`, employerID).
		Scan(&conn.EmployerID, &conn.TenantID, &conn.AccessToken, &conn.RefreshToken, &conn.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Connection{}, ErrNotConnected
		}
		return Connection{}, err
	}
	return conn, nil
}

func (c *Client) tenants(ctx context.Context, token *oauth2.Token) ([]Tenant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, connectionsURL, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("xero: connections returned %d", resp.StatusCode)
	}
	var tenants []Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// ErrConflict is returned when the gateway rejects a submission because a
// concurrent transaction touched the same records. The operation applied no
// writes; resubmit it.
var ErrConflict = errors.New("transaction conflict, resubmit")

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrRevoked is returned by ValidateCertificate when the certificate exists
// but has been revoked.
var ErrRevoked = errors.New("certificate revoked")

// User is a ledger participant record.
type User struct {
	ID       string `json:"id"`
	DNI      string `json:"dni"`
	UserType string `json:"userType"`
}

// Certificate is an academic certificate record as stored on the ledger.
type Certificate struct {
	ID               string `json:"id"`
	StudentName      string `json:"studentName"`
	DNIStudent       string `json:"dniStudent"`
	Program          string `json:"program"`
	IssueDate        string `json:"issueDate"`
	Degree           string `json:"degree"`
	Title            string `json:"title"`
	Institution      string `json:"institution"`
	State            string `json:"state"`
	RevocationReason string `json:"revocationReason,omitempty"`
}

// VerificationRequest is a resolved employer verification record.
type VerificationRequest struct {
	ID            string `json:"id"`
	CertificateID string `json:"certificateId"`
	EmployeeName  string `json:"employeeName"`
	RequestDate   string `json:"requestDate"`
	Result        string `json:"result"`
	Comments      string `json:"comments,omitempty"`
}

// CreateUserResult holds the new user together with its one-time enrollment
// secret. The secret is never returned again.
type CreateUserResult struct {
	User             *User  `json:"user"`
	EnrollmentSecret string `json:"enrollment_secret"`
}

// CreateCertificateRequest is the payload for CreateCertificate.
type CreateCertificateRequest struct {
	StudentName string `json:"student_name"`
	DNI         string `json:"dni"`
	Program     string `json:"program"`
	IssueDate   string `json:"issue_date"`
	Degree      string `json:"degree"`
	Title       string `json:"title"`
	Institution string `json:"institution"`
}

// Client is the EduChain SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a pre-obtained identity token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client connected to the gateway at baseURL.
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(token),
//	)
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FetchToken exchanges an enrolled participant's dni and secret for an
// identity token, caches it on the client, and returns it.
func (c *Client) FetchToken(ctx context.Context, dni, secret string) (string, error) {
	return c.fetchToken(ctx, map[string]string{"dni": dni, "secret": secret})
}

// FetchAdminToken exchanges the gateway's bootstrap admin secret for an
// administrator token, caches it on the client, and returns it.
func (c *Client) FetchAdminToken(ctx context.Context, adminSecret string) (string, error) {
	return c.fetchToken(ctx, map[string]string{"admin_secret": adminSecret})
}

func (c *Client) fetchToken(ctx context.Context, payload map[string]string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/api/v1/auth/token", payload, &resp); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.bearerToken = resp.Token
	c.mu.Unlock()
	return resp.Token, nil
}

// CreateUser registers a new participant. Requires an administrator token.
// The returned enrollment secret is delivered once and stored only hashed.
func (c *Client) CreateUser(ctx context.Context, dni, userType string) (*CreateUserResult, error) {
	payload := map[string]string{"dni": dni, "user_type": userType}
	var result CreateUserResult
	if err := c.post(ctx, "/api/v1/users", payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateCertificate issues a new certificate. Requires an institution token.
func (c *Client) CreateCertificate(ctx context.Context, req CreateCertificateRequest) (*Certificate, error) {
	var cert Certificate
	if err := c.post(ctx, "/api/v1/certificates", req, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// ValidateCertificate checks whether the certificate identified by id exists
// and is in force. Returns ErrNotFound or ErrRevoked on the failure paths.
func (c *Client) ValidateCertificate(ctx context.Context, id string) (*Certificate, error) {
	var cert Certificate
	if err := c.get(ctx, "/api/v1/certificates/"+url.PathEscape(id), &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// RevokeCertificate permanently revokes the certificate identified by id.
// Requires an institution token and a non-empty reason.
func (c *Client) RevokeCertificate(ctx context.Context, id, reason string) (*Certificate, error) {
	payload := map[string]string{"reason": reason}
	var cert Certificate
	if err := c.post(ctx, "/api/v1/certificates/"+url.PathEscape(id)+"/revoke", payload, &cert); err != nil {
		return nil, err
	}
	return &cert, nil
}

// CreateVerificationRequest records an employer verification of the given
// certificate. The result is resolved synchronously to valid or invalid.
func (c *Client) CreateVerificationRequest(ctx context.Context, certificateID, employeeName, requestDate string) (*VerificationRequest, error) {
	payload := map[string]string{
		"certificate_id": certificateID,
		"employee_name":  employeeName,
		"request_date":   requestDate,
	}
	var vr VerificationRequest
	if err := c.post(ctx, "/api/v1/verifications", payload, &vr); err != nil {
		return nil, err
	}
	return &vr, nil
}

// GetStudentCertificates lists the issued certificates held by the student
// with the given dni. Students may only query their own dni.
func (c *Client) GetStudentCertificates(ctx context.Context, dni string) ([]Certificate, error) {
	var wrapper struct {
		Certificates []Certificate `json:"certificates"`
	}
	if err := c.get(ctx, "/api/v1/students/"+url.PathEscape(dni)+"/certificates", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Certificates, nil
}

// InitLedger seeds the ledger with its bootstrap dataset. Requires an
// administrator token. Fails if any seed record already exists.
func (c *Client) InitLedger(ctx context.Context) error {
	return c.post(ctx, "/api/v1/init", nil, nil)
}

// ── HTTP plumbing ──────────────────────────────────────────────────────────

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// do executes the request, attaching the bearer token if present, and maps
// gateway error statuses onto the package sentinels.
func (c *Client) do(req *http.Request, out any) error {
	c.mu.Lock()
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	c.mu.Unlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, gatewayMessage(body))
	case resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: %s", ErrRevoked, gatewayMessage(body))
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, gatewayMessage(body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, gatewayMessage(body))
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// gatewayMessage extracts the error field from a gateway JSON error body,
// falling back to the raw body.
func gatewayMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(body)
}

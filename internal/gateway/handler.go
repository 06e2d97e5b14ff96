// Package gateway exposes the ledger operations over HTTP and hosts the
// platform glue: token verification, transaction submission with
// commit-time conflict reporting, rate limiting, and metrics.
package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/educhain-dev/educhain/internal/credential"
	"github.com/educhain-dev/educhain/internal/identity"
	"github.com/educhain-dev/educhain/internal/statestore"
)

// CredentialHandler routes the public ledger operations.
type CredentialHandler struct {
	store    statestore.Store
	contract *credential.Contract
	enroll   *identity.EnrollmentStore
	logger   *zap.Logger
}

// NewCredentialHandler creates a CredentialHandler.
func NewCredentialHandler(store statestore.Store, contract *credential.Contract, enroll *identity.EnrollmentStore, logger *zap.Logger) *CredentialHandler {
	return &CredentialHandler{store: store, contract: contract, enroll: enroll, logger: logger}
}

// Register mounts the credential routes on the given router group.
// All routes require an identity token.
func (h *CredentialHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/users", h.CreateUser)
	rg.POST("/certificates", h.CreateCertificate)
	rg.GET("/certificates/:id", h.ValidateCertificate)
	rg.POST("/certificates/:id/revoke", h.RevokeCertificate)
	rg.POST("/verifications", h.CreateVerificationRequest)
	rg.GET("/students/:dni/certificates", h.GetStudentCertificates)
	rg.POST("/init", h.InitLedger)
}

// ── Request / Response types ────────────────────────────────────────────────

type createUserRequest struct {
	DNI      string `json:"dni" binding:"required"`
	UserType string `json:"user_type" binding:"required"`
}

type createUserResponse struct {
	User *credential.User `json:"user"`
	// EnrollmentSecret is returned exactly once; it is stored only hashed.
	EnrollmentSecret string `json:"enrollment_secret"`
}

type createCertificateRequest struct {
	StudentName string `json:"student_name"`
	DNI         string `json:"dni"`
	Program     string `json:"program"`
	IssueDate   string `json:"issue_date"`
	Degree      string `json:"degree"`
	Title       string `json:"title"`
	Institution string `json:"institution"`
}

type revokeCertificateRequest struct {
	Reason string `json:"reason"`
}

type createVerificationRequest struct {
	CertificateID string `json:"certificate_id"`
	EmployeeName  string `json:"employee_name"`
	RequestDate   string `json:"request_date"`
}

// ── Handlers ────────────────────────────────────────────────────────────────

// CreateUser handles POST /users. Bootstrap administrator only. On success
// the participant's one-time enrollment secret is included in the response.
func (h *CredentialHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := CallerFrom(c)

	out, ok := h.submit(c, func(tx statestore.Tx) (any, error) {
		return h.contract.CreateUser(c.Request.Context(), tx, caller, req.DNI, credential.UserType(req.UserType))
	})
	if !ok {
		return
	}
	u := out.(*credential.User)

	// Enroll only after the user record is committed: a failed invocation
	// must leave the enrollment state untouched.
	secret, err := h.enroll.Enroll(u.DNI)
	if err != nil {
		h.logger.Error("enroll participant", zap.String("dni", u.DNI), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "enrollment failed"})
		return
	}
	c.JSON(http.StatusCreated, &createUserResponse{User: u, EnrollmentSecret: secret})
}

// CreateCertificate handles POST /certificates. The requester identifier is
// the caller's enrolled dni.
func (h *CredentialHandler) CreateCertificate(c *gin.Context) {
	var req createCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := CallerFrom(c)

	out, ok := h.submit(c, func(tx statestore.Tx) (any, error) {
		return h.contract.CreateCertificate(c.Request.Context(), tx,
			req.StudentName, req.DNI, req.Program, req.IssueDate,
			req.Degree, req.Title, req.Institution, caller.DNI())
	})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ValidateCertificate handles GET /certificates/:id.
func (h *CredentialHandler) ValidateCertificate(c *gin.Context) {
	h.evaluate(c, func(tx statestore.Tx) (any, error) {
		return h.contract.ValidateCertificate(c.Request.Context(), tx, c.Param("id"))
	})
}

// RevokeCertificate handles POST /certificates/:id/revoke.
func (h *CredentialHandler) RevokeCertificate(c *gin.Context) {
	var req revokeCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := CallerFrom(c)

	out, ok := h.submit(c, func(tx statestore.Tx) (any, error) {
		return h.contract.RevokeCertificate(c.Request.Context(), tx, c.Param("id"), req.Reason, caller.DNI())
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, out)
}

// CreateVerificationRequest handles POST /verifications.
func (h *CredentialHandler) CreateVerificationRequest(c *gin.Context) {
	var req createVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller := CallerFrom(c)

	out, ok := h.submit(c, func(tx statestore.Tx) (any, error) {
		return h.contract.CreateVerificationRequest(c.Request.Context(), tx,
			req.CertificateID, req.EmployeeName, req.RequestDate, caller.DNI())
	})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, out)
}

// GetStudentCertificates handles GET /students/:dni/certificates.
func (h *CredentialHandler) GetStudentCertificates(c *gin.Context) {
	caller := CallerFrom(c)

	h.evaluate(c, func(tx statestore.Tx) (any, error) {
		certs, err := h.contract.GetStudentCertificates(c.Request.Context(), tx, c.Param("dni"), caller.DNI())
		if err != nil {
			return nil, err
		}
		return gin.H{"certificates": certs}, nil
	})
}

// InitLedger handles POST /init. Bootstrap administrator only.
func (h *CredentialHandler) InitLedger(c *gin.Context) {
	caller := CallerFrom(c)
	if !caller.IsBootstrapAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": credential.ErrUnauthorized.Error()})
		return
	}

	out, ok := h.submit(c, func(tx statestore.Tx) (any, error) {
		if err := h.contract.InitLedger(c.Request.Context(), tx); err != nil {
			return nil, err
		}
		return gin.H{"status": "seeded"}, nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, out)
}

// ── Transaction plumbing ────────────────────────────────────────────────────

// submit runs invoke inside a fresh transaction and commits it. A commit
// conflict maps to 409: the operation applied no writes and the caller
// must resubmit. It returns the invoke result and whether the commit
// succeeded; on failure the error response has already been written, so
// callers must not touch any state outside the transaction until submit
// reports success.
func (h *CredentialHandler) submit(c *gin.Context, invoke func(tx statestore.Tx) (any, error)) (any, bool) {
	ctx := c.Request.Context()

	tx, err := h.store.Begin(ctx)
	if err != nil {
		h.logger.Error("begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state unavailable"})
		return nil, false
	}
	defer tx.Discard()

	out, err := invoke(tx)
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}

	if err := tx.Commit(ctx); err != nil {
		if errors.Is(err, statestore.ErrConflict) {
			RecordCommit("conflict")
			c.JSON(http.StatusConflict, gin.H{"error": "transaction conflict; resubmit"})
			return nil, false
		}
		h.logger.Error("commit transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "commit failed"})
		return nil, false
	}
	RecordCommit("committed")
	return out, true
}

// evaluate runs invoke inside a transaction that is never committed.
// Used for read-only operations.
func (h *CredentialHandler) evaluate(c *gin.Context, invoke func(tx statestore.Tx) (any, error)) {
	tx, err := h.store.Begin(c.Request.Context())
	if err != nil {
		h.logger.Error("begin transaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "state unavailable"})
		return
	}
	defer tx.Discard()

	out, err := invoke(tx)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// renderError maps the typed operation failures onto HTTP statuses.
func (h *CredentialHandler) renderError(c *gin.Context, err error) {
	var missing *credential.MissingFieldError
	switch {
	case errors.As(err, &missing),
		errors.Is(err, credential.ErrBadDateFormat),
		errors.Is(err, credential.ErrFutureOrPresentDate),
		errors.Is(err, credential.ErrMissingReason):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, credential.ErrUnauthorized),
		errors.Is(err, credential.ErrUnknownRequester):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, credential.ErrAlreadyExists),
		errors.Is(err, credential.ErrAlreadyRevoked):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, credential.ErrNotFound),
		errors.Is(err, credential.ErrNoCertificatesFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, credential.ErrRevoked):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		h.logger.Error("operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

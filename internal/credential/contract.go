// Package credential implements the transactional record-management logic
// for academic credentials on the shared versioned state.
//
// Every public operation is one atomic invocation over a statestore.Tx: it
// resolves identity, checks policy, validates arguments, derives or looks up
// the entity identity, reads current state, applies a transition, and writes
// the new state. All conflict resolution is delegated to the store's
// commit-time read-set validation — there is no locking or retry here, only
// the read-before-write discipline that makes that validation meaningful.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/educhain-dev/educhain/internal/identity"
	"github.com/educhain-dev/educhain/internal/statestore"
	"go.uber.org/zap"
)

// Contract holds the lifecycle operations for User, Certificate, and
// VerificationRequest records. It is stateless across invocations: every
// operation re-reads what it needs from the transaction it is given.
type Contract struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewContract creates a Contract.
func NewContract(logger *zap.Logger) *Contract {
	return &Contract{logger: logger, now: time.Now}
}

// SetClock overrides the wall-clock source used for date validation.
func (c *Contract) SetClock(now func() time.Time) {
	c.now = now
}

// CreateUser registers a participant. Only the bootstrap administrator
// identity may call it. Identity is a pure function of dni, so two
// creations with the same dni collide and the second is rejected.
// userType is stored as given; no enum membership is enforced.
func (c *Contract) CreateUser(ctx context.Context, tx statestore.Tx, caller identity.Resolver, dni string, userType UserType) (*User, error) {
	if err := requireBootstrapAdmin(caller); err != nil {
		return nil, err
	}
	if dni == "" {
		return nil, &MissingFieldError{Field: "dni"}
	}
	if userType == "" {
		return nil, &MissingFieldError{Field: "userType"}
	}

	id := UserID(dni)
	exists, err := tx.Has(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check user existence: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	u := &User{DocType: docTypeUser, ID: id, DNI: dni, UserType: userType}
	if err := c.putRecord(ctx, tx, id, u); err != nil {
		return nil, err
	}

	c.logger.Info("user created",
		zap.String("id", id),
		zap.String("user_type", string(userType)),
	)
	return u, nil
}

// CreateCertificate issues a new certificate. The requester must resolve to
// an institution User record. A tuple identical to an existing certificate
// hashes to the same identity and is rejected.
func (c *Contract) CreateCertificate(ctx context.Context, tx statestore.Tx, studentName, dni, program, issueDate, degree, title, institution, requesterDNI string) (*Certificate, error) {
	if _, err := requireInstitution(ctx, tx, requesterDNI); err != nil {
		return nil, err
	}
	if err := validateCertificateFields(studentName, dni, program, issueDate, degree, title, institution, c.now()); err != nil {
		return nil, err
	}

	id := CertificateID(studentName, dni, program, issueDate, degree, title, institution)
	exists, err := tx.Has(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check certificate existence: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	cert := &Certificate{
		DocType:     docTypeCertificate,
		ID:          id,
		StudentName: studentName,
		DNIStudent:  dni,
		Program:     program,
		IssueDate:   issueDate,
		Degree:      degree,
		Title:       title,
		Institution: institution,
		State:       CertificateIssued,
	}
	if err := c.putRecord(ctx, tx, id, cert); err != nil {
		return nil, err
	}

	c.logger.Info("certificate issued",
		zap.String("id", id),
		zap.String("dni_student", dni),
		zap.String("institution", institution),
	)
	return cert, nil
}

// RevokeCertificate moves an issued certificate to the terminal revoked
// state. The current record is read in the same transaction immediately
// before the write, so two concurrent revocations of the same certificate
// cannot both commit.
func (c *Contract) RevokeCertificate(ctx context.Context, tx statestore.Tx, certificateID, reason, requesterDNI string) (*Certificate, error) {
	if _, err := requireInstitution(ctx, tx, requesterDNI); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrMissingReason
	}

	cert, err := c.readCertificate(ctx, tx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.State == CertificateRevoked {
		return nil, ErrAlreadyRevoked
	}

	cert.State = CertificateRevoked
	cert.RevocationReason = reason
	if err := c.putRecord(ctx, tx, cert.ID, cert); err != nil {
		return nil, err
	}

	c.logger.Info("certificate revoked",
		zap.String("id", cert.ID),
		zap.String("reason", reason),
	)
	return cert, nil
}

// ValidateCertificate returns the certificate record if it exists and has
// not been revoked. This is the single point of truth used both by direct
// verification calls and by CreateVerificationRequest.
func (c *Contract) ValidateCertificate(ctx context.Context, tx statestore.Tx, certificateID string) (*Certificate, error) {
	cert, err := c.readCertificate(ctx, tx, certificateID)
	if err != nil {
		return nil, err
	}
	if cert.State == CertificateRevoked {
		return nil, ErrRevoked
	}
	return cert, nil
}

// CreateVerificationRequest records an employer's certificate check. The
// result is resolved synchronously: a certificate that validates yields
// "valid", a missing or revoked one yields "invalid". The validation
// failure is mapped to a data value, never propagated.
func (c *Contract) CreateVerificationRequest(ctx context.Context, tx statestore.Tx, certificateID, employeeName, requestDate, requesterDNI string) (*VerificationRequest, error) {
	if _, err := requireInstitution(ctx, tx, requesterDNI); err != nil {
		return nil, err
	}
	if err := validateVerificationFields(certificateID, employeeName, requestDate, c.now()); err != nil {
		return nil, err
	}

	id := VerificationRequestID(certificateID, employeeName, requestDate)
	exists, err := tx.Has(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check verification existence: %w", err)
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	result := VerificationValid
	if _, err := c.ValidateCertificate(ctx, tx, certificateID); err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrRevoked) {
			return nil, err
		}
		result = VerificationInvalid
	}

	req := &VerificationRequest{
		DocType:       docTypeVerification,
		ID:            id,
		CertificateID: certificateID,
		EmployeeName:  employeeName,
		RequestDate:   requestDate,
		Result:        result,
	}
	if err := c.putRecord(ctx, tx, id, req); err != nil {
		return nil, err
	}

	c.logger.Info("verification request created",
		zap.String("id", id),
		zap.String("result", string(result)),
	)
	return req, nil
}

// GetStudentCertificates returns the issued (non-revoked) certificates for a
// student. Students may only query their own dni; institutions and admins
// may query any. Result order is unspecified.
func (c *Contract) GetStudentCertificates(ctx context.Context, tx statestore.Tx, dni, requesterDNI string) ([]*Certificate, error) {
	if err := requireStudentScope(ctx, tx, dni, requesterDNI); err != nil {
		return nil, err
	}

	it, err := tx.Query(ctx, map[string]string{
		"docType":    docTypeCertificate,
		"dniStudent": dni,
		"state":      string(CertificateIssued),
	})
	if err != nil {
		return nil, fmt.Errorf("query certificates: %w", err)
	}
	defer it.Close()

	var certs []*Certificate
	for it.Next() {
		var cert Certificate
		if err := json.Unmarshal(it.Value(), &cert); err != nil {
			return nil, fmt.Errorf("decode certificate %s: %w", it.Key(), err)
		}
		certs = append(certs, &cert)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterate certificates: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertificatesFound
	}
	return certs, nil
}

// readCertificate fetches and decodes a certificate by identity.
func (c *Contract) readCertificate(ctx context.Context, tx statestore.Tx, certificateID string) (*Certificate, error) {
	raw, err := tx.Get(ctx, certificateID)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	var cert Certificate
	if err := json.Unmarshal(raw, &cert); err != nil {
		return nil, fmt.Errorf("decode certificate record: %w", err)
	}
	if cert.DocType != docTypeCertificate {
		return nil, ErrNotFound
	}
	return &cert, nil
}

// putRecord marshals and writes one entity record. Write failures are
// logged with their cause and collapsed to ErrStorageFailure so storage
// internals never leak to callers.
func (c *Contract) putRecord(ctx context.Context, tx statestore.Tx, key string, record any) error {
	b, err := json.Marshal(record)
	if err != nil {
		c.logger.Error("marshal record failed", zap.String("key", key), zap.Error(err))
		return ErrStorageFailure
	}
	if err := tx.Put(ctx, key, b); err != nil {
		c.logger.Error("state write failed", zap.String("key", key), zap.Error(err))
		return ErrStorageFailure
	}
	return nil
}

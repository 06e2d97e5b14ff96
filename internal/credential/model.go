package credential

import (
	"github.com/educhain-dev/educhain/pkg/contenthash"
)

// Document type discriminators stored in every record so selector queries
// can scope a scan to one entity kind.
const (
	docTypeUser         = "user"
	docTypeCertificate  = "certificate"
	docTypeVerification = "verification"
)

// UserType is the role of a registered participant.
type UserType string

const (
	UserTypeAdmin       UserType = "admin"
	UserTypeInstitution UserType = "institution"
	UserTypeStudent     UserType = "student"
)

// CertificateState is the lifecycle state of an academic certificate.
// The only transition is issued → revoked; revoked is terminal.
type CertificateState string

const (
	CertificateIssued  CertificateState = "issued"
	CertificateRevoked CertificateState = "revoked"
)

// VerificationResult is the outcome of a verification request.
// Pending is declared for completeness but never persisted: results are
// resolved synchronously at creation time.
type VerificationResult string

const (
	VerificationPending VerificationResult = "pending"
	VerificationValid   VerificationResult = "valid"
	VerificationInvalid VerificationResult = "invalid"
)

// User is a registered participant. Immutable once created; its identity is
// a pure function of the dni.
type User struct {
	DocType  string   `json:"docType"`
	ID       string   `json:"id"`
	DNI      string   `json:"dni"`
	UserType UserType `json:"userType"`
}

// Certificate is an issued academic credential. All fields except State and
// RevocationReason are bound into the identity hash, so the content is
// immutable after creation: editing any field yields a different identity,
// which is a different certificate, not a mutation.
type Certificate struct {
	DocType          string           `json:"docType"`
	ID               string           `json:"id"`
	StudentName      string           `json:"studentName"`
	DNIStudent       string           `json:"dniStudent"`
	Program          string           `json:"program"`
	IssueDate        string           `json:"issueDate"`
	Degree           string           `json:"degree"`
	Title            string           `json:"title"`
	Institution      string           `json:"institution"`
	State            CertificateState `json:"state"`
	RevocationReason string           `json:"revocationReason"`
}

// VerificationRequest records an employer's check of a certificate.
// Immutable after creation.
type VerificationRequest struct {
	DocType       string             `json:"docType"`
	ID            string             `json:"id"`
	CertificateID string             `json:"certificateId"`
	EmployeeName  string             `json:"employeeName"`
	RequestDate   string             `json:"requestDate"`
	Result        VerificationResult `json:"result"`
	Comments      string             `json:"comments"`
}

// UserID derives the ledger key for a participant from their dni.
func UserID(dni string) string {
	return contenthash.Identify(dni)
}

// CertificateID derives the ledger key for a certificate from its defining
// field tuple, in canonical order.
func CertificateID(studentName, dni, program, issueDate, degree, title, institution string) string {
	return contenthash.Identify(studentName, dni, program, issueDate, degree, title, institution)
}

// VerificationRequestID derives the ledger key for a verification request.
func VerificationRequestID(certificateID, employeeName, requestDate string) string {
	return contenthash.Identify(certificateID, employeeName, requestDate)
}

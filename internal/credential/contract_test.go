package credential_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/educhain-dev/educhain/internal/credential"
	"github.com/educhain-dev/educhain/internal/identity"
	"github.com/educhain-dev/educhain/internal/statestore"
)

var adminCaller = identity.NewCaller(map[string]string{
	identity.AttrBootstrapAdmin: "true",
})

func newTestContract() *credential.Contract {
	c := credential.NewContract(zap.NewNop())
	c.SetClock(func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	})
	return c
}

func begin(t *testing.T, store statestore.Store) statestore.Tx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func commit(t *testing.T, tx statestore.Tx) {
	t.Helper()
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	tx.Discard()
}

// seedParticipants registers an institution (dni 1) and two students
// (dni 2 and 3) in a committed transaction of their own.
func seedParticipants(t *testing.T, c *credential.Contract, store statestore.Store) {
	t.Helper()
	ctx := context.Background()
	tx := begin(t, store)
	for dni, ut := range map[string]credential.UserType{
		"1": credential.UserTypeInstitution,
		"2": credential.UserTypeStudent,
		"3": credential.UserTypeStudent,
	} {
		if _, err := c.CreateUser(ctx, tx, adminCaller, dni, ut); err != nil {
			t.Fatalf("create user %s: %v", dni, err)
		}
	}
	commit(t, tx)
}

// issueTestCertificate issues and commits one certificate for student dni 2.
func issueTestCertificate(t *testing.T, c *credential.Contract, store statestore.Store) *credential.Certificate {
	t.Helper()
	tx := begin(t, store)
	cert, err := c.CreateCertificate(context.Background(), tx,
		"Ada Lovelace", "2", "Computing", "2020-01-01", "Engineering", "Systems Engineer", "UTN", "1")
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	commit(t, tx)
	return cert
}

func TestCreateUser(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()

	t.Run("requires bootstrap admin", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		nobody := identity.NewCaller(map[string]string{identity.AttrDNI: "1"})
		if _, err := c.CreateUser(ctx, tx, nobody, "9", credential.UserTypeStudent); !errors.Is(err, credential.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		var missing *credential.MissingFieldError
		if _, err := c.CreateUser(ctx, tx, adminCaller, "", credential.UserTypeStudent); !errors.As(err, &missing) || missing.Field != "dni" {
			t.Errorf("empty dni: got %v", err)
		}
		if _, err := c.CreateUser(ctx, tx, adminCaller, "9", ""); !errors.As(err, &missing) || missing.Field != "userType" {
			t.Errorf("empty userType: got %v", err)
		}
	})

	t.Run("identity derives from dni", func(t *testing.T) {
		tx := begin(t, store)
		u, err := c.CreateUser(ctx, tx, adminCaller, "42", credential.UserTypeStudent)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		commit(t, tx)
		if u.ID != credential.UserID("42") {
			t.Errorf("id = %q, want %q", u.ID, credential.UserID("42"))
		}
	})

	t.Run("duplicate dni rejected", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.CreateUser(ctx, tx, adminCaller, "42", credential.UserTypeInstitution); !errors.Is(err, credential.ErrAlreadyExists) {
			t.Errorf("got %v, want ErrAlreadyExists", err)
		}
	})
}

func TestCreateCertificate(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)

	t.Run("unknown requester", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.CreateCertificate(ctx, tx, "A", "2", "P", "2020-01-01", "D", "T", "I", "no-such-dni")
		if !errors.Is(err, credential.ErrUnknownRequester) {
			t.Errorf("got %v, want ErrUnknownRequester", err)
		}
	})

	t.Run("student may not issue", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.CreateCertificate(ctx, tx, "A", "2", "P", "2020-01-01", "D", "T", "I", "2")
		if !errors.Is(err, credential.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("issues with derived identity", func(t *testing.T) {
		cert := issueTestCertificate(t, c, store)
		wantID := credential.CertificateID("Ada Lovelace", "2", "Computing", "2020-01-01", "Engineering", "Systems Engineer", "UTN")
		if cert.ID != wantID {
			t.Errorf("id = %q, want %q", cert.ID, wantID)
		}
		if cert.State != credential.CertificateIssued {
			t.Errorf("state = %q, want issued", cert.State)
		}
	})

	t.Run("identical tuple rejected", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.CreateCertificate(ctx, tx, "Ada Lovelace", "2", "Computing", "2020-01-01", "Engineering", "Systems Engineer", "UTN", "1")
		if !errors.Is(err, credential.ErrAlreadyExists) {
			t.Errorf("got %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("one differing field is a new certificate", func(t *testing.T) {
		tx := begin(t, store)
		cert, err := c.CreateCertificate(ctx, tx, "Ada Lovelace", "2", "Computing", "2020-01-02", "Engineering", "Systems Engineer", "UTN", "1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		commit(t, tx)
		if cert.ID == credential.CertificateID("Ada Lovelace", "2", "Computing", "2020-01-01", "Engineering", "Systems Engineer", "UTN") {
			t.Error("differing issueDate produced the same identity")
		}
	})
}

func TestCertificateDateValidation(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)

	// The clock is pinned to 2025-06-15.
	cases := []struct {
		name string
		date string
		want error
	}{
		{"month out of range", "2025-13-01", credential.ErrBadDateFormat},
		{"not a date at all", "01-06-2025", credential.ErrBadDateFormat},
		{"calendar-invalid day", "2023-02-30", credential.ErrBadDateFormat},
		{"today", "2025-06-15", credential.ErrFutureOrPresentDate},
		{"future", "2025-07-01", credential.ErrFutureOrPresentDate},
		{"yesterday accepted", "2025-06-14", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := begin(t, store)
			defer tx.Discard()
			_, err := c.CreateCertificate(ctx, tx, "A", "2", "P", tc.date, "D", "T", "I", "1")
			if tc.want == nil {
				if err != nil {
					t.Fatalf("got %v, want success", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFieldValidationOrder(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)

	// An empty field is reported before the (also invalid) date is examined.
	tx := begin(t, store)
	defer tx.Discard()
	_, err := c.CreateCertificate(ctx, tx, "", "2", "P", "not-a-date", "D", "T", "I", "1")
	var missing *credential.MissingFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingFieldError", err)
	}
	if missing.Field != "studentName" {
		t.Errorf("field = %q, want studentName", missing.Field)
	}
}

func TestRevokeCertificate(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)
	cert := issueTestCertificate(t, c, store)

	t.Run("requires reason", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "", "1"); !errors.Is(err, credential.ErrMissingReason) {
			t.Errorf("got %v, want ErrMissingReason", err)
		}
	})

	t.Run("missing certificate", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.RevokeCertificate(ctx, tx, "nope", "fraud", "1"); !errors.Is(err, credential.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("revokes and records reason", func(t *testing.T) {
		tx := begin(t, store)
		revoked, err := c.RevokeCertificate(ctx, tx, cert.ID, "fraud", "1")
		if err != nil {
			t.Fatalf("revoke: %v", err)
		}
		commit(t, tx)
		if revoked.State != credential.CertificateRevoked {
			t.Errorf("state = %q, want revoked", revoked.State)
		}
		if revoked.RevocationReason != "fraud" {
			t.Errorf("reason = %q, want fraud", revoked.RevocationReason)
		}
	})

	t.Run("revoked is terminal", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "again", "1"); !errors.Is(err, credential.ErrAlreadyRevoked) {
			t.Errorf("got %v, want ErrAlreadyRevoked", err)
		}
	})
}

func TestConcurrentRevocationsOneCommits(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)
	cert := issueTestCertificate(t, c, store)

	// Both invocations read the issued certificate before either commits,
	// so each believes it performs the issued → revoked transition.
	txA := begin(t, store)
	txB := begin(t, store)
	if _, err := c.RevokeCertificate(ctx, txA, cert.ID, "fraud", "1"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if _, err := c.RevokeCertificate(ctx, txB, cert.ID, "clerical error", "1"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	commit(t, txA)
	if err := txB.Commit(ctx); !errors.Is(err, statestore.ErrConflict) {
		t.Fatalf("losing revocation: got %v, want ErrConflict", err)
	}
	txB.Discard()

	// Only the winner's transition is on the ledger; a fresh invocation
	// sees the terminal state.
	tx := begin(t, store)
	defer tx.Discard()
	if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "again", "1"); !errors.Is(err, credential.ErrAlreadyRevoked) {
		t.Errorf("got %v, want ErrAlreadyRevoked", err)
	}
}

func TestValidateCertificate(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)
	cert := issueTestCertificate(t, c, store)

	t.Run("issued validates", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		got, err := c.ValidateCertificate(ctx, tx, cert.ID)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		if got.ID != cert.ID {
			t.Errorf("id = %q, want %q", got.ID, cert.ID)
		}
	})

	t.Run("missing reported as not found", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.ValidateCertificate(ctx, tx, "nope"); !errors.Is(err, credential.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("revoked reported as revoked", func(t *testing.T) {
		tx := begin(t, store)
		if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "fraud", "1"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		commit(t, tx)

		tx = begin(t, store)
		defer tx.Discard()
		if _, err := c.ValidateCertificate(ctx, tx, cert.ID); !errors.Is(err, credential.ErrRevoked) {
			t.Errorf("got %v, want ErrRevoked", err)
		}
	})
}

func TestCreateVerificationRequest(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)
	cert := issueTestCertificate(t, c, store)

	t.Run("valid certificate resolves to valid", func(t *testing.T) {
		tx := begin(t, store)
		vr, err := c.CreateVerificationRequest(ctx, tx, cert.ID, "HR Bot", "2024-05-05", "1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		commit(t, tx)
		if vr.Result != credential.VerificationValid {
			t.Errorf("result = %q, want valid", vr.Result)
		}
		if vr.ID != credential.VerificationRequestID(cert.ID, "HR Bot", "2024-05-05") {
			t.Errorf("unexpected identity %q", vr.ID)
		}
	})

	t.Run("duplicate request rejected", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.CreateVerificationRequest(ctx, tx, cert.ID, "HR Bot", "2024-05-05", "1")
		if !errors.Is(err, credential.ErrAlreadyExists) {
			t.Errorf("got %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("missing certificate resolves to invalid, not error", func(t *testing.T) {
		tx := begin(t, store)
		vr, err := c.CreateVerificationRequest(ctx, tx, "no-such-cert", "HR Bot", "2024-05-05", "1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		commit(t, tx)
		if vr.Result != credential.VerificationInvalid {
			t.Errorf("result = %q, want invalid", vr.Result)
		}
	})

	t.Run("revoked certificate resolves to invalid", func(t *testing.T) {
		tx := begin(t, store)
		if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "fraud", "1"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		commit(t, tx)

		tx = begin(t, store)
		vr, err := c.CreateVerificationRequest(ctx, tx, cert.ID, "HR Bot", "2024-05-06", "1")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		commit(t, tx)
		if vr.Result != credential.VerificationInvalid {
			t.Errorf("result = %q, want invalid", vr.Result)
		}
	})

	t.Run("requires institution role", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.CreateVerificationRequest(ctx, tx, cert.ID, "HR Bot", "2024-05-07", "2")
		if !errors.Is(err, credential.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})
}

func TestGetStudentCertificates(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()
	seedParticipants(t, c, store)

	t.Run("empty result is not found", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		_, err := c.GetStudentCertificates(ctx, tx, "2", "1")
		if !errors.Is(err, credential.ErrNoCertificatesFound) {
			t.Errorf("got %v, want ErrNoCertificatesFound", err)
		}
	})

	cert := issueTestCertificate(t, c, store)

	t.Run("institution may query any student", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		certs, err := c.GetStudentCertificates(ctx, tx, "2", "1")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(certs) != 1 || certs[0].ID != cert.ID {
			t.Fatalf("unexpected result: %+v", certs)
		}
	})

	t.Run("student may query own dni", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.GetStudentCertificates(ctx, tx, "2", "2"); err != nil {
			t.Errorf("self query failed: %v", err)
		}
	})

	t.Run("student may not query another dni", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if _, err := c.GetStudentCertificates(ctx, tx, "2", "3"); !errors.Is(err, credential.ErrUnauthorized) {
			t.Errorf("got %v, want ErrUnauthorized", err)
		}
	})

	t.Run("revoked certificates are excluded", func(t *testing.T) {
		tx := begin(t, store)
		if _, err := c.RevokeCertificate(ctx, tx, cert.ID, "fraud", "1"); err != nil {
			t.Fatalf("revoke: %v", err)
		}
		commit(t, tx)

		tx = begin(t, store)
		defer tx.Discard()
		if _, err := c.GetStudentCertificates(ctx, tx, "2", "1"); !errors.Is(err, credential.ErrNoCertificatesFound) {
			t.Errorf("got %v, want ErrNoCertificatesFound after revocation", err)
		}
	})
}

func TestInitLedger(t *testing.T) {
	c := newTestContract()
	store := statestore.NewMemStore()
	ctx := context.Background()

	tx := begin(t, store)
	if err := c.InitLedger(ctx, tx); err != nil {
		t.Fatalf("init: %v", err)
	}
	commit(t, tx)

	t.Run("seeded student sees own certificate", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		certs, err := c.GetStudentCertificates(ctx, tx, "43474542", "43474542")
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(certs) != 1 {
			t.Fatalf("got %d certificates, want 1", len(certs))
		}
		if certs[0].Institution != "Universidad Tecnologica Nacional" {
			t.Errorf("unexpected institution %q", certs[0].Institution)
		}
	})

	t.Run("seeded institution may issue", func(t *testing.T) {
		tx := begin(t, store)
		if _, err := c.CreateCertificate(ctx, tx, "New Grad", "43474542", "Programa 3", "2025-01-01", "Ingenieria", "Ingenieria en sistemas", "UTN", "30555666"); err != nil {
			t.Fatalf("issue as seeded institution: %v", err)
		}
		commit(t, tx)
	})

	t.Run("reseeding fails", func(t *testing.T) {
		tx := begin(t, store)
		defer tx.Discard()
		if err := c.InitLedger(ctx, tx); !errors.Is(err, credential.ErrAlreadyExists) {
			t.Errorf("got %v, want ErrAlreadyExists", err)
		}
	})
}

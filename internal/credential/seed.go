package credential

import (
	"context"
	"fmt"

	"github.com/educhain-dev/educhain/internal/statestore"
	"go.uber.org/zap"
)

// Seed participants and certificates written by InitLedger. The institution
// issues the two sample certificates; the students can then query their own
// records.
var (
	seedUsers = []User{
		{DNI: "30555666", UserType: UserTypeInstitution},
		{DNI: "43474542", UserType: UserTypeStudent},
		{DNI: "43884165", UserType: UserTypeStudent},
	}

	seedCertificates = []Certificate{
		{
			StudentName: "Juani",
			DNIStudent:  "43474542",
			Program:     "Programa 1",
			IssueDate:   "2024-12-01",
			Degree:      "Ingenieria",
			Title:       "Ingenieria en sistemas",
			Institution: "Universidad Tecnologica Nacional",
		},
		{
			StudentName: "Juan",
			DNIStudent:  "43884165",
			Program:     "Programa 2",
			IssueDate:   "2024-12-25",
			Degree:      "Ingenieria",
			Title:       "Ingenieria en sistemas",
			Institution: "Universidad Tecnologica Nacional",
		},
	}
)

// InitLedger writes a fixed set of default users and certificates for
// demonstration and testing. Records are written directly, bypassing the
// role policy: the seed runs before any participant exists. Re-running
// against a seeded ledger fails with ErrAlreadyExists.
func (c *Contract) InitLedger(ctx context.Context, tx statestore.Tx) error {
	for _, u := range seedUsers {
		u.DocType = docTypeUser
		u.ID = UserID(u.DNI)
		exists, err := tx.Has(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("check seed user: %w", err)
		}
		if exists {
			return ErrAlreadyExists
		}
		if err := c.putRecord(ctx, tx, u.ID, &u); err != nil {
			return err
		}
	}

	for _, cert := range seedCertificates {
		cert.DocType = docTypeCertificate
		cert.State = CertificateIssued
		cert.ID = CertificateID(
			cert.StudentName, cert.DNIStudent, cert.Program,
			cert.IssueDate, cert.Degree, cert.Title, cert.Institution,
		)
		exists, err := tx.Has(ctx, cert.ID)
		if err != nil {
			return fmt.Errorf("check seed certificate: %w", err)
		}
		if exists {
			return ErrAlreadyExists
		}
		if err := c.putRecord(ctx, tx, cert.ID, &cert); err != nil {
			return err
		}
	}

	c.logger.Info("ledger seeded",
		zap.Int("users", len(seedUsers)),
		zap.Int("certificates", len(seedCertificates)),
	)
	return nil
}

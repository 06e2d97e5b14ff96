package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/educhain-dev/educhain/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	gatewayURL  string
	bearerToken string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "educhain",
	Short: "EduChain academic credential CLI",
	Long: `educhain is the command-line interface for the EduChain credential ledger.

It lets institutions issue and revoke academic certificates, employers
verify them, and students list their own credentials.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.educhain")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if gatewayURL == "" {
			gatewayURL = viper.GetString("gateway_url")
		}
		if gatewayURL == "" {
			gatewayURL = "http://localhost:8080"
		}
		if bearerToken == "" {
			bearerToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.educhain/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", "", "EduChain gateway URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "identity token (or EDUCHAIN token config key)")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(certsCmd)
	rootCmd.AddCommand(initLedgerCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if bearerToken != "" {
		opts = append(opts, client.WithBearerToken(bearerToken))
	}
	return client.New(gatewayURL, opts...)
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenDNI    string
	tokenSecret string
	tokenAdmin  string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Obtain an identity token from the gateway",
	Long: `token exchanges credentials for a bearer token.

Participants present their dni and one-time enrollment secret:

  educhain token --dni 43474542 --secret <enrollment-secret>

Administrators present the gateway's bootstrap secret:

  educhain token --admin-secret <bootstrap-secret>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		var token string
		switch {
		case tokenAdmin != "":
			token, err = c.FetchAdminToken(ctx, tokenAdmin)
		case tokenDNI != "" && tokenSecret != "":
			token, err = c.FetchToken(ctx, tokenDNI, tokenSecret)
		default:
			return fmt.Errorf("provide --dni and --secret, or --admin-secret")
		}
		if err != nil {
			return fmt.Errorf("fetch token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenDNI, "dni", "", "Participant dni")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "One-time enrollment secret")
	tokenCmd.Flags().StringVar(&tokenAdmin, "admin-secret", "", "Bootstrap administrator secret")
}

// ── create-user ──────────────────────────────────────────────────────────────

var (
	userDNI  string
	userType string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Register a new participant (administrator only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		result, err := c.CreateUser(context.Background(), userDNI, userType)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("✓ User registered\n\n")
		fmt.Printf("  ID:   %s\n", result.User.ID)
		fmt.Printf("  DNI:  %s\n", result.User.DNI)
		fmt.Printf("  Type: %s\n\n", result.User.UserType)
		fmt.Println("One-time enrollment secret (store it now, it will not be shown again):")
		fmt.Printf("  %s\n", result.EnrollmentSecret)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&userDNI, "dni", "", "Participant dni")
	createUserCmd.Flags().StringVar(&userType, "type", "", "User type (admin, institution, student)")
	_ = createUserCmd.MarkFlagRequired("dni")
	_ = createUserCmd.MarkFlagRequired("type")
}

// ── issue ────────────────────────────────────────────────────────────────────

var issueReq client.CreateCertificateRequest

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a new academic certificate (institution only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		cert, err := c.CreateCertificate(context.Background(), issueReq)
		if err != nil {
			return fmt.Errorf("issue certificate: %w", err)
		}

		fmt.Printf("✓ Certificate issued\n\n")
		fmt.Printf("  ID:          %s\n", cert.ID)
		fmt.Printf("  Student:     %s (%s)\n", cert.StudentName, cert.DNIStudent)
		fmt.Printf("  Program:     %s\n", cert.Program)
		fmt.Printf("  Issue date:  %s\n", cert.IssueDate)
		fmt.Printf("  Institution: %s\n", cert.Institution)
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVar(&issueReq.StudentName, "student", "", "Student full name")
	issueCmd.Flags().StringVar(&issueReq.DNI, "dni", "", "Student dni")
	issueCmd.Flags().StringVar(&issueReq.Program, "program", "", "Academic program")
	issueCmd.Flags().StringVar(&issueReq.IssueDate, "date", "", "Issue date (YYYY-MM-DD, strictly in the past)")
	issueCmd.Flags().StringVar(&issueReq.Degree, "degree", "", "Degree")
	issueCmd.Flags().StringVar(&issueReq.Title, "title", "", "Title conferred")
	issueCmd.Flags().StringVar(&issueReq.Institution, "institution", "", "Issuing institution")
	for _, f := range []string{"student", "dni", "program", "date", "degree", "title", "institution"} {
		_ = issueCmd.MarkFlagRequired(f)
	}
}

// ── validate ─────────────────────────────────────────────────────────────────

var validateCmd = &cobra.Command{
	Use:   "validate <certificate-id>",
	Short: "Check whether a certificate exists and is in force",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		cert, err := c.ValidateCertificate(context.Background(), args[0])
		if err != nil {
			if errors.Is(err, client.ErrRevoked) {
				fmt.Println("✗ Certificate has been revoked")
				os.Exit(1)
			}
			if errors.Is(err, client.ErrNotFound) {
				fmt.Println("✗ Certificate not found")
				os.Exit(1)
			}
			return fmt.Errorf("validate: %w", err)
		}

		fmt.Printf("✓ Certificate is valid\n\n")
		out, _ := json.MarshalIndent(cert, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// ── revoke ───────────────────────────────────────────────────────────────────

var revokeReason string

var revokeCmd = &cobra.Command{
	Use:   "revoke <certificate-id>",
	Short: "Permanently revoke a certificate (institution only)",
	Long: `Revoke marks a certificate as revoked on the ledger.

Revocation is permanent and requires a non-empty reason:

  educhain revoke <id> --reason "issued in error"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		cert, err := c.RevokeCertificate(context.Background(), args[0], revokeReason)
		if err != nil {
			return fmt.Errorf("revoke: %w", err)
		}
		fmt.Printf("✓ Certificate revoked: %s\n", cert.ID)
		fmt.Printf("  Reason: %s\n", cert.RevocationReason)
		return nil
	},
}

func init() {
	revokeCmd.Flags().StringVar(&revokeReason, "reason", "", "Reason for revocation")
	_ = revokeCmd.MarkFlagRequired("reason")
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyEmployee string
	verifyDate     string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <certificate-id>",
	Short: "Record an employer verification of a certificate (institution only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		vr, err := c.CreateVerificationRequest(context.Background(), args[0], verifyEmployee, verifyDate)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}

		fmt.Printf("Verification recorded: %s\n\n", vr.ID)
		fmt.Printf("  Certificate: %s\n", vr.CertificateID)
		fmt.Printf("  Result:      %s\n", vr.Result)
		if vr.Comments != "" {
			fmt.Printf("  Comments:    %s\n", vr.Comments)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyEmployee, "employee", "", "Name of the verifying employee")
	verifyCmd.Flags().StringVar(&verifyDate, "date", "", "Request date (YYYY-MM-DD, strictly in the past)")
	_ = verifyCmd.MarkFlagRequired("employee")
	_ = verifyCmd.MarkFlagRequired("date")
}

// ── certs ────────────────────────────────────────────────────────────────────

var certsCmd = &cobra.Command{
	Use:   "certs <dni>",
	Short: "List the issued certificates held by a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		certs, err := c.GetStudentCertificates(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list certificates: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPROGRAM\tDEGREE\tISSUED\tINSTITUTION")
		for _, cert := range certs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				cert.ID, cert.Program, cert.Degree, cert.IssueDate, cert.Institution)
		}
		return w.Flush()
	},
}

// ── init ─────────────────────────────────────────────────────────────────────

var initLedgerCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed the ledger with its bootstrap dataset (administrator only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		if err := c.InitLedger(context.Background()); err != nil {
			return fmt.Errorf("init ledger: %w", err)
		}
		fmt.Println("✓ Ledger seeded")
		return nil
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the educhain CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("educhain %s\n", version)
	},
}

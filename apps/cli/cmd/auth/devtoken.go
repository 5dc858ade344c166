package authcmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	platformauth "github.com/luminapos/lumina-saas/platform/go/auth"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Auth utilities (dev tokens)",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var (
		secret    string
		subject   string
		role      string
		companyID string
		expiresIn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate a signed bearer token for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := platformauth.Principal{
				Subject: subject,
				Role:    platformauth.Role(role),
			}
			if companyID != "" {
				id, err := uuid.Parse(companyID)
				if err != nil {
					return fmt.Errorf("parse company id: %w", err)
				}
				p.CompanyID = &id
			}

			token, err := platformauth.SignToken([]byte(secret), p, expiresIn, time.Now().UTC())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret (must match AUTH_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "", "sub claim")
	cmd.Flags().StringVar(&role, "role", string(platformauth.RoleSuperuser), "role claim (superuser or tenant)")
	cmd.Flags().StringVar(&companyID, "company-id", "", "company_id claim (required for tenant role)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")

	_ = cmd.MarkFlagRequired("secret")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

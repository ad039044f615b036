package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tabletalk/tabletalk/internal/config"
	"github.com/tabletalk/tabletalk/internal/service"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		Long: `Sign a bearer token with auth.jwt_secret. The server requires one on /chat
and /api/v1/* whenever a secret is configured.`,
		Example: `  tabletalk token --subject analyst
  TABLETALK_TOKEN=$(tabletalk token --subject me --ttl 8h) tabletalk chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = config.Duration(cfg.Auth.JWTExpiry, 24*time.Hour)
			}

			tok, err := service.NewAuthService(cfg.Auth.JWTSecret).IssueJWT(subject, ttl)
			if err != nil {
				if errors.Is(err, service.ErrAuthDisabled) {
					return fmt.Errorf("%w: set auth.jwt_secret or TABLETALK_AUTH_JWT_SECRET", err)
				}
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(os.Stderr, "Token for %q expires %s\n", subject, time.Now().Add(ttl).Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject of the token (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default auth.jwt_expiry)")
	cmd.MarkFlagRequired("subject")

	return cmd
}

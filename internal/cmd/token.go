package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goGuard/jwt"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator token for the admin endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens, err := tokenManager()
		if err != nil {
			return err
		}
		if tokens == nil {
			return errors.New("admin.secret (GOGUARD_ADMIN_SECRET) is not set")
		}
		token, err := tokens.Issue(tokenSubject, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator identity recorded in admin logs")
	tokenCmd.Flags().StringVar(&tokenRole, "role", jwt.RoleAdmin, "token role")
	_ = tokenCmd.MarkFlagRequired("subject")
}

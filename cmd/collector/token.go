package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"debt-collector/internal/auth"
	"debt-collector/internal/rbac"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator access token",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("operator", "", "Operator id (required)")
	tokenCmd.Flags().String("instance", "", "Instance the token is scoped to; empty for admin tokens")
	tokenCmd.Flags().String("role", rbac.RoleViewer, "Role: viewer, operator or admin")
	_ = tokenCmd.MarkFlagRequired("operator")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	operator, _ := cmd.Flags().GetString("operator")
	instance, _ := cmd.Flags().GetString("instance")
	role, _ := cmd.Flags().GetString("role")
	if !rbac.IsKnownRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}
	if instance == "" && !rbac.IsAdmin(role) {
		return errors.New("non-admin tokens need --instance")
	}

	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	tok, err := m.Issue(time.Now(), operator, instance, role)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}

package main

import (
	"fmt"

	"github.com/aman-churiwal/ringhub-gateway/internal/service"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Create or update the database schema",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ringhub.Postgres.AutoMigrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
		return nil
	},
}

var (
	adminEmail    string
	adminPassword string
	adminName     string
	adminRole     string
)

var createAdminCmd = &cobra.Command{
	Use:     "create-admin",
	Short:   "Create an operator account for the admin API",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := ringhub.Auth.Register(cmd.Context(), adminEmail, adminPassword, adminName, adminRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s operator %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

var pruneCmd = &cobra.Command{
	Use:     "prune",
	Short:   "Drop action records older than the retention period",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pruned := ringhub.RetentionSweeper().Sweep(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d action records\n", pruned)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "operator email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "operator password")
	createAdminCmd.Flags().StringVar(&adminName, "name", "", "display name")
	createAdminCmd.Flags().StringVar(&adminRole, "role", service.RoleAdmin, "admin or moderator")
	createAdminCmd.MarkFlagRequired("email")
	createAdminCmd.MarkFlagRequired("password")
}

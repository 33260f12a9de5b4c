package cli

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-coach/internal/rbac"
)

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage tenant users",
	}
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user, creating the tenant if needed",
		RunE:  runUserAdd,
	}
	addCmd.Flags().String("tenant", "", "Tenant ID (required)")
	addCmd.Flags().String("tenant-name", "", "Display name for a new tenant")
	addCmd.Flags().String("username", "", "Login name (required)")
	addCmd.Flags().String("display-name", "", "Display name")
	addCmd.Flags().String("role", rbac.RoleAdmin, "coach|coachee|admin")
	addCmd.Flags().String("password", "", "Password (required)")
	userCmd.AddCommand(addCmd)
	return userCmd
}

type newUser struct {
	TenantID, TenantName, Username, DisplayName, Role, Password string
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	var u newUser
	u.TenantID, _ = cmd.Flags().GetString("tenant")
	u.TenantName, _ = cmd.Flags().GetString("tenant-name")
	u.Username, _ = cmd.Flags().GetString("username")
	u.DisplayName, _ = cmd.Flags().GetString("display-name")
	u.Role, _ = cmd.Flags().GetString("role")
	u.Password, _ = cmd.Flags().GetString("password")

	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.closer()

	id, err := addUser(cmd.Context(), e.db, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s) in tenant %s\n", u.Role, u.Username, id, u.TenantID)
	return nil
}

func addUser(ctx context.Context, db *sql.DB, u newUser) (id string, err error) {
	u.TenantID = strings.TrimSpace(u.TenantID)
	u.Username = strings.TrimSpace(u.Username)
	if u.TenantID == "" || u.Username == "" || u.Password == "" {
		return "", fmt.Errorf("--tenant, --username and --password are required")
	}
	if !rbac.ValidRole(u.Role) {
		return "", fmt.Errorf("invalid role %q", u.Role)
	}
	if u.TenantName == "" {
		u.TenantName = u.TenantID
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), 12)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO tenants (id, name, created_at) VALUES ($1,$2,$3) ON CONFLICT (id) DO NOTHING`,
		u.TenantID, u.TenantName, now); err != nil {
		return "", err
	}
	id = uuid.NewString()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, tenant_id, username, display_name, password_hash, role, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, u.TenantID, u.Username, u.DisplayName, string(hash), u.Role, now); err != nil {
		return "", fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

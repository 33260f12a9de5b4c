package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-coach/internal/framework"
)

func newImportFrameworkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-framework <file.yaml>",
		Short: "Load a framework definition into a tenant",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportFramework,
	}
	cmd.Flags().String("tenant", "", "Tenant ID (required)")
	return cmd
}

func runImportFramework(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	if tenant == "" {
		return fmt.Errorf("--tenant is required")
	}
	f, err := framework.LoadYAML(args[0])
	if err != nil {
		return err
	}
	f.TenantID = tenant

	e, err := openEnv(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer e.closer()

	out, err := framework.NewSQLStore(e.db).Create(cmd.Context(), f, "cli")
	if err != nil {
		return err
	}
	e.log.Info("framework imported", "framework", out.ID, "tenant", tenant, "source", args[0])
	fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s (%d steps)\n", out.Name, out.ID, len(out.Steps))
	return nil
}

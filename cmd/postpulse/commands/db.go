package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/sym"
)

// DbCmd manages the database
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Migrate and seed the postpulse database",
	Long: sym.DB + ` db - Manage the postpulse database

The driver comes from database.driver (sqlite3, postgres, mysql). Every
command opens the database through the migration runner first.

Examples:
  postpulse db migrate
  postpulse db seed seed.toml`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		pterm.Success.Printf("%s schema is up to date\n", a.dialect)
		return nil
	},
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed <file.toml>",
	Short: "Insert accounts, personas and content items from a TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadSeed(args[0])
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := seed(context.Background(), a.content, a.jobs, f)
		if err != nil {
			return err
		}
		pterm.Success.Printf("Seeded %d account(s), %d item(s), %d job(s)\n", sum.Accounts, sum.Items, sum.Jobs)
		return nil
	},
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbSeedCmd)
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/postpulse/am"
	"github.com/teranos/postpulse/errors"
	"github.com/teranos/postpulse/sym"
)

// AmCmd shows and validates configuration
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Show and validate postpulse configuration",
	Long: sym.AM + ` am - postpulse configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (POSTPULSE_* prefix, plus CRON_SECRET,
   ADMIN_PASSWORD and OPENROUTER_API_KEY)
2. Project config (./am.toml, searched upwards)
3. User config (~/.postpulse/am.toml)
4. System config (/etc/postpulse/config.toml)
5. Default values

Examples:
  postpulse am show        # effective settings, secrets masked
  postpulse am validate`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := am.RenderTOML(am.GetViper())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "# postpulse configuration\n%s", out)
		return nil
	},
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := am.Load(); err != nil {
			return errors.Wrap(err, "configuration validation failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
		return nil
	},
}

func init() {
	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amValidateCmd)
}

package cmd

import (
	"fmt"

	"github.com/pigeonworks-llc/bean-import/pkg/config"
	"github.com/spf13/cobra"
)

// profilesCmd represents the profiles command.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available bank profiles",
	Long: `List the built-in bank profiles and those defined in the profiles file
(BEAN_IMPORT_PROFILES, default config/profiles.yaml). Every profile is
validated, so this also checks a profiles file for mistakes.

Example:
  bean-import profiles`,
	RunE: runProfiles,
}

func runProfiles(cmd *cobra.Command, args []string) error {
	profiles, err := config.LoadProfiles(appConfig.Import.ProfilesPath)
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	for _, p := range profiles {
		rules := 0
		for _, tier := range p.CategorizeTiers() {
			rules += len(tier.Rules)
		}
		fmt.Printf("%-24s %-4s %-40s %s  %d rules\n", p.Name, p.Kind, p.Account, p.Currency, rules)
	}
	return nil
}

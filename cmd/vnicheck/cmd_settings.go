package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vnicheck/pkg/cli"
	"github.com/newtron-network/vnicheck/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent settings",
	Long: `Manage persistent settings stored in ~/.vnicheck/settings.json.

Settings provide defaults for flags:
  - default_testbed: Used when --testbed is not specified
  - default_mapping: Used when neither --vnis-ips nor $VNIS_IPS is set
  - match_mode:      Default --match (address, contains, substring)
  - connect_timeout: Default --timeout (e.g. 45s)

Examples:
  vnicheck settings show
  vnicheck settings set default_testbed /etc/vnicheck/testbed.yaml
  vnicheck settings set match_mode contains
  vnicheck settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		values := userSettings.Values()
		t := cli.NewTable(os.Stdout, "SETTING", "VALUE")
		for _, key := range settings.Keys {
			value, ok := values[key]
			if !ok {
				value = "(not set)"
			}
			t.Row(key, value)
		}
		t.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long:  "Set a persistent setting value. Valid settings: " + strings.Join(settings.Keys, ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := userSettings.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := userSettings.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Printf("%s set to: %s\n", args[0], args[1])
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		userSettings.Clear()
		if err := userSettings.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("Settings cleared.")
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsClearCmd)
}

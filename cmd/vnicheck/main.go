// vnicheck verifies that the IPs expected under each VXLAN VNI are
// advertised in the BGP EVPN table of every testbed device.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vnicheck/pkg/settings"
	"github.com/newtron-network/vnicheck/pkg/util"
	"github.com/newtron-network/vnicheck/pkg/version"
)

var (
	// Global option flags
	testbedPath string
	logLevel    string
	logJSON     bool
	verbose     bool

	// Global state
	userSettings *settings.Settings
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:               "vnicheck",
	Short:             "BGP EVPN VNI/IP validation",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `vnicheck checks that every IP expected under a VXLAN VNI appears in the
BGP EVPN routes of the devices in a testbed.

The expected mapping is a JSON file named by --vnis-ips or $VNIS_IPS:

  {"l2": {"leaf1": {"10100": ["10.1.1.5"]}}, "l3": {"leaf1": {"50001": ["10.2.0.1"]}}}

  vnicheck validate                     # check the mapping file only
  vnicheck run -t testbed.yaml          # connect, gather and check
  vnicheck show leaf1 -t testbed.yaml   # dump one device's EVPN table

Exit status: 0 all checks passed, 1 check failures, 2 setup error.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		level := logLevel
		if verbose && !cmd.Flags().Changed("log-level") {
			level = "info"
		}
		if err := util.SetLogLevel(level); err != nil {
			return fmt.Errorf("--log-level: %w", err)
		}
		if logJSON {
			util.SetJSONFormat()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&testbedPath, "testbed", "t", "", "testbed YAML file (default from settings)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON lines")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newShowCmd(),
		settingsCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				if version.Version == "dev" {
					fmt.Println("vnicheck dev build")
				} else {
					fmt.Printf("vnicheck %s\n", version.Info())
				}
			},
		},
	)
}

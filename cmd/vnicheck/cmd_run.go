package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vnicheck/pkg/util"
	"github.com/newtron-network/vnicheck/pkg/vnitest"
)

func newRunCmd() *cobra.Command {
	var (
		mappingPath string
		match       string
		timeout     time.Duration
		junitPath   string
		reportPath  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Check every expected VNI/IP against the testbed",
		Long: `Connect to every testbed device, gather "show bgp l2vpn evpn" and look
for each expected IP among the prefixes advertised under its VNI.

Match modes:
  substring  IP text appears in the prefix text (default)
  address    IP equals a prefix's address
  contains   IP falls inside an advertised prefix

Examples:
  vnicheck run -t testbed.yaml --vnis-ips vnis_ips.json
  VNIS_IPS=vnis_ips.json vnicheck run -t testbed.yaml --junit out/junit.xml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := loadTestbed(testbedPath)
			if err != nil {
				return err
			}
			mode, err := resolveMatchMode(match, userSettings)
			if err != nil {
				return err
			}
			if err := fillPasswords(tb, tb.DeviceNames(), terminalPassword); err != nil {
				return err
			}

			runner := vnitest.NewRunner(tb, resolveMappingPath(mappingPath, userSettings), vnitest.Config{
				ConnectTimeout: resolveTimeout(timeout, userSettings),
				MatchMode:      mode,
			})
			runner.Progress = vnitest.NewConsoleProgress(verbose)

			result, _ := runner.Execute(cmd.Context())

			gen := &vnitest.ReportGenerator{Result: result}
			if reportPath != "" {
				if err := gen.WriteMarkdown(reportPath); err != nil {
					util.Warnf("Writing report: %v", err)
				}
			}
			if junitPath != "" {
				if err := gen.WriteJUnit(junitPath); err != nil {
					util.Warnf("Writing JUnit: %v", err)
				}
			}

			// Exit 2 = setup error, Exit 1 = check failure
			if code := result.ExitCode(); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "vnis-ips", "", "expected VNI/IP mapping JSON (default $VNIS_IPS)")
	cmd.Flags().StringVar(&match, "match", "", "IP match mode: address, contains, substring (default from settings, else substring)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "connect timeout for every device (default from testbed)")
	cmd.Flags().StringVar(&junitPath, "junit", "", "JUnit XML output path")
	cmd.Flags().StringVar(&reportPath, "report", "", "markdown report output path")

	return cmd
}

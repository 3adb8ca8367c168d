package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vnicheck/pkg/cli"
	"github.com/newtron-network/vnicheck/pkg/device"
	"github.com/newtron-network/vnicheck/pkg/evpn"
	"github.com/newtron-network/vnicheck/pkg/util"
)

func newShowCmd() *cobra.Command {
	var (
		summary bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "show <device>",
		Short: "Show a device's parsed BGP EVPN table",
		Long: `Connect to one testbed device and print its parsed "show bgp l2vpn evpn"
data as JSON. The output of a live device can be saved and replayed later
as a snapshot device.

Examples:
  vnicheck show leaf1 -t testbed.yaml > leaf1.json
  vnicheck show leaf1 -t testbed.yaml --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := loadTestbed(testbedPath)
			if err != nil {
				return err
			}
			name := args[0]
			td, ok := tb.Devices[name]
			if !ok {
				return fmt.Errorf("device %s: %w in testbed %s", name, util.ErrNotFound, tb.Name)
			}
			if err := fillPasswords(tb, []string{name}, terminalPassword); err != nil {
				return err
			}

			dev, err := device.Open(td)
			if err != nil {
				return err
			}
			if t := resolveTimeout(timeout, userSettings); t > 0 {
				td.ConnectTimeout = t
			}
			if err := dev.Connect(cmd.Context(), td.ConnectTimeout); err != nil {
				return err
			}
			defer dev.Close()

			data, err := dev.Parse(cmd.Context(), device.CmdShowBGPEVPN)
			if err != nil {
				return err
			}

			if !summary {
				out, err := json.MarshalIndent(data, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			}
			return showSummary(dev, evpn.Snapshot(data))
		},
	}

	cmd.Flags().BoolVar(&summary, "summary", false, "print the RD table instead of raw JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "connect timeout (default from testbed)")
	return cmd
}

func showSummary(dev device.Device, snap evpn.Snapshot) error {
	entries, err := evpn.RouteDistinguishers(snap)
	if err != nil {
		return err
	}

	fmt.Printf("Device: %s  (%d RD entries)\n\n", cli.Bold(dev.Name()), len(entries))
	t := cli.NewTable(os.Stdout, "RD", "VNI", "PREFIXES")
	for _, e := range entries {
		t.Row(e.RD, e.VNI, strconv.Itoa(len(e.Prefixes)))
	}
	t.Flush()

	cr, ok := dev.(device.VNIConfigReader)
	if !ok {
		return nil
	}
	configured := cr.ConfiguredVNIs()
	if len(configured) == 0 {
		return nil
	}

	vnis := make([]string, 0, len(configured))
	for vni := range configured {
		vnis = append(vnis, vni)
	}
	sort.Strings(vnis)

	advertised := make(map[string]bool, len(entries))
	for _, e := range entries {
		advertised[e.VNI] = true
	}

	fmt.Println()
	ct := cli.NewTable(os.Stdout, "CONFIGURED VNI", "MAPPED TO", "IN EVPN")
	for _, vni := range vnis {
		in := cli.Red("no")
		if advertised[vni] {
			in = cli.Green("yes")
		}
		ct.Row(vni, configured[vni], in)
	}
	ct.Flush()
	return nil
}

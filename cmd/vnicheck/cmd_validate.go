package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/vnicheck/pkg/cli"
	"github.com/newtron-network/vnicheck/pkg/mapping"
)

func newValidateCmd() *cobra.Command {
	var mappingPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the expected VNI/IP mapping file",
		Long: `Load and validate the mapping without contacting any device, then print
device, VNI and IP counts per layer. With -v every entry is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := mapping.Path(resolveMappingPath(mappingPath, userSettings))
			if err != nil {
				return err
			}
			m, err := mapping.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("%s: %s\n\n", path, cli.Green("valid"))
			writeMappingCounts(os.Stdout, m)

			if verbose {
				fmt.Println()
				t := cli.NewTable(os.Stdout, "LAYER", "DEVICE", "VNI", "IPS")
				for _, e := range m.Entries() {
					t.Row(string(e.Layer), e.Device, e.VNI, joinIPs(e.IPs))
				}
				t.Flush()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "vnis-ips", "", "expected VNI/IP mapping JSON (default $VNIS_IPS)")
	return cmd
}

func writeMappingCounts(w io.Writer, m mapping.Mapping) {
	t := cli.NewTable(w, "LAYER", "DEVICES", "VNIS", "IPS")
	for _, layer := range mapping.Layers {
		if _, ok := m[layer]; !ok {
			t.Row(string(layer), "-", "-", "-")
			continue
		}
		devices, vnis, ips := m.Count(layer)
		t.Row(string(layer), strconv.Itoa(devices), strconv.Itoa(vnis), strconv.Itoa(ips))
	}
	t.Flush()
}

func joinIPs(ips []string) string {
	if len(ips) == 0 {
		return "(none)"
	}
	return strings.Join(ips, ", ")
}

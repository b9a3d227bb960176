// Command acxsim drives the acx driver against a simulated chip and a
// configurable set of simulated access points.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
	"github.com/soypat/acx"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/internal/simbus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tatsushid/go-prettytable"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "acxsim",
		Short:        "Run the ACX100/ACX111 driver against a simulated chip",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML device configuration file")
	rootCmd.PersistentFlags().String("variant", "acx111", "chip variant when no configuration file is given")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level: trace, debug, info, warn or error")

	runCmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Bring the device up and report link state until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runSim,
	}
	runCmd.Flags().StringArray("ap", nil, "simulated access point as essid:channel[:open|shared[:hidden]]; repeatable")
	runCmd.Flags().Duration("duration", 0, "stop after this long; zero runs until interrupted")
	runCmd.Flags().Duration("scan-delay", defaultScanDelay, "simulated scan duration")
	runCmd.Flags().String("metrics", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(runCmd)

	ieCmd := &cobra.Command{
		Use:   "ies",
		Short: "List firmware information elements and their lengths per variant",
		Args:  cobra.NoArgs,
		RunE:  listIEs,
	}
	rootCmd.AddCommand(ieCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration named by --config or returns the
// default configuration of --variant.
func loadConfig(cmd *cobra.Command) (acx.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return acx.LoadConfig(afero.NewOsFs(), path)
	}
	vstr, _ := cmd.Flags().GetString("variant")
	var v acxfw.Variant
	err := v.UnmarshalText([]byte(vstr))
	if err != nil {
		return acx.Config{}, errors.Wrapf(err, "--variant %q", vstr)
	}
	return acx.DefaultConfig(v), nil
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	lvlstr, _ := cmd.Flags().GetString("log-level")
	var lvl slog.Level
	switch strings.ToLower(lvlstr) {
	case "trace":
		lvl = slog.LevelDebug - 1
	default:
		err := lvl.UnmarshalText([]byte(lvlstr))
		if err != nil {
			return nil, errors.Wrap(err, "--log-level")
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// parseAP parses an access point description of the form
// essid:channel[:open|shared[:hidden]].
func parseAP(s string, idx int) (*simbus.AP, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 4 {
		return nil, errors.Errorf("access point %q: want essid:channel[:auth[:hidden]]", s)
	}
	ch, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil || ch == 0 || ch > 14 {
		return nil, errors.Errorf("access point %q: bad channel", s)
	}
	ap := &simbus.AP{
		BSSID:   [6]byte{0x02, 0xac, 0x51, 0x00, byte(idx >> 8), byte(idx)},
		ESSID:   fields[0],
		Channel: uint8(ch),
		Level:   100,
		SNR:     40,
	}
	if len(fields) > 2 {
		var alg acx.AuthAlg
		err = alg.UnmarshalText([]byte(fields[2]))
		if err != nil {
			return nil, errors.Wrapf(err, "access point %q", s)
		}
		if alg == acx.AuthSharedKey {
			ap.Auth = layers.Dot11AlgorithmSharedKey
		}
	}
	if len(fields) > 3 {
		if fields[3] != "hidden" {
			return nil, errors.Errorf("access point %q: unknown option %q", s, fields[3])
		}
		ap.Hidden = true
	}
	return ap, nil
}

func listIEs(cmd *cobra.Command, args []string) error {
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "ID", AlignRight: true},
		prettytable.Column{Header: "Name"},
		prettytable.Column{Header: "ACX100", AlignRight: true},
		prettytable.Column{Header: "ACX111", AlignRight: true},
	)
	table.Separator = "  "
	length := func(v acxfw.Variant, ie acxfw.IE) string {
		n, ok := v.IELen(ie)
		if !ok {
			return "-"
		}
		return strconv.Itoa(n)
	}
	for _, base := range []acxfw.IE{0, 0x1000} {
		for ie := base; ie < base+0x20; ie++ {
			_, ok100 := acxfw.VariantACX100.IELen(ie)
			_, ok111 := acxfw.VariantACX111.IELen(ie)
			if !ok100 && !ok111 {
				continue
			}
			table.AddRow(fmt.Sprintf("%#04x", uint16(ie)), ie.String(),
				length(acxfw.VariantACX100, ie), length(acxfw.VariantACX111, ie))
		}
	}
	table.Print()
	return nil
}

func statusString(s acx.Status) string {
	switch s {
	case acx.StatusAssociated:
		return color.GreenString(s.String())
	case acx.StatusStopped:
		return color.RedString(s.String())
	}
	return color.YellowString(s.String())
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soypat/acx"
	"github.com/soypat/acx/internal/simbus"
	"github.com/spf13/cobra"
	"github.com/tatsushid/go-prettytable"
	"golang.org/x/sync/errgroup"
)

const (
	defaultScanDelay = 200 * time.Millisecond
	reportPeriod     = 2 * time.Second
)

var simMAC = [6]byte{0x00, 0x60, 0xb3, 0x5a, 0x00, 0x01}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	cfg.Logger = logger
	apSpecs, _ := cmd.Flags().GetStringArray("ap")
	duration, _ := cmd.Flags().GetDuration("duration")
	scanDelay, _ := cmd.Flags().GetDuration("scan-delay")
	metricsAddr, _ := cmd.Flags().GetString("metrics")

	bus := simbus.New(cfg.Variant, cfg.RingSize, simMAC)
	bus.SetScanDelay(scanDelay)
	for i, spec := range apSpecs {
		ap, err := parseAP(spec, i+1)
		if err != nil {
			return err
		}
		bus.AddAP(ap)
	}

	dev := acx.New(bus, bus)
	err = dev.Init(cfg)
	if err != nil {
		return errors.Wrap(err, "initializing device")
	}
	defer dev.Down()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return irqLoop(ctx, dev, bus) })
	g.Go(func() error { return dev.RunJobs(ctx) })
	g.Go(func() error { return report(ctx, dev) })
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(acx.NewCollector(dev, "acxsim"))
		g.Go(func() error { return serveMetrics(ctx, metricsAddr, reg, logger) })
	}

	err = dev.Up()
	if err != nil {
		cancel()
		g.Wait()
		return errors.Wrap(err, "bringing device up")
	}
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	printLink(dev)
	printPeers(dev)
	return nil
}

// irqLoop services device interrupts as the simulated chip raises them.
func irqLoop(ctx context.Context, dev *acx.Device, bus *simbus.Bus) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-bus.IRQ():
			err := dev.HandleIRQ()
			if err != nil && !errors.Is(err, acx.ErrDeviceNotReady) {
				return err
			}
		}
	}
}

func report(ctx context.Context, dev *acx.Device) error {
	tick := time.NewTicker(reportPeriod)
	defer tick.Stop()
	last := acx.Status(255)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
		link := dev.Link()
		if link.Status == last {
			continue
		}
		last = link.Status
		fmt.Printf("%s  %s bssid=%s essid=%q channel=%d\n", time.Now().Format(time.TimeOnly),
			statusString(link.Status), net.HardwareAddr(link.BSSID[:]), link.ESSID, link.Channel)
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func printLink(dev *acx.Device) {
	link := dev.Link()
	s := dev.Stats()
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "KEY"},
		prettytable.Column{Header: "VALUE"},
	)
	table.Separator = "  "
	table.AddRow("status", statusString(link.Status))
	table.AddRow("mode", link.Mode)
	table.AddRow("bssid", net.HardwareAddr(link.BSSID[:]))
	table.AddRow("essid", link.ESSID)
	table.AddRow("channel", link.Channel)
	table.AddRow("aid", link.AID)
	table.AddRow("rates", link.Rates)
	table.AddRow("commands", s.Commands)
	table.AddRow("tx packets", s.TxPackets)
	table.AddRow("rx packets", s.RxPackets)
	table.AddRow("rx dropped", s.RxDropped)
	if err := dev.AssocError(); err != nil {
		table.AddRow("last refusal", err)
	}
	table.Print()
}

func printPeers(dev *acx.Device) {
	table, _ := prettytable.NewTable(
		prettytable.Column{Header: "Address"},
		prettytable.Column{Header: "ESSID"},
		prettytable.Column{Header: "Ch", AlignRight: true},
		prettytable.Column{Header: "State"},
		prettytable.Column{Header: "Rates"},
		prettytable.Column{Header: "TX Rate"},
		prettytable.Column{Header: "SNR", AlignRight: true},
	)
	table.Separator = "  "
	for _, p := range dev.Peers() {
		table.AddRow(net.HardwareAddr(p.Addr[:]), p.ESSID, p.Channel, p.State, p.Rates, p.TxRate, p.SNR)
	}
	fmt.Println()
	table.Print()
}

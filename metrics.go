package acx

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports device counters and link state to Prometheus.
type Collector struct {
	d *Device

	commands      *prometheus.Desc
	cmdErrors     *prometheus.Desc
	cmdTimeouts   *prometheus.Desc
	txPackets     *prometheus.Desc
	txBytes       *prometheus.Desc
	txErrors      *prometheus.Desc
	rxPackets     *prometheus.Desc
	rxBytes       *prometheus.Desc
	rxDropped     *prometheus.Desc
	rxDuplicates  *prometheus.Desc
	authMismatch  *prometheus.Desc
	rateChanges   *prometheus.Desc
	status        *prometheus.Desc
	peers         *prometheus.Desc
	ringFree      *prometheus.Desc
	ringCorrupted *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for d. Metric names are prefixed with
// namespace.
func NewCollector(d *Device, namespace string) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "acx", name), help, labels, nil)
	}
	return &Collector{
		d:             d,
		commands:      desc("commands_total", "Firmware commands issued."),
		cmdErrors:     desc("command_errors_total", "Firmware commands completed with an error status."),
		cmdTimeouts:   desc("command_timeouts_total", "Firmware commands that did not complete in time."),
		txPackets:     desc("tx_packets_total", "Frames transmitted."),
		txBytes:       desc("tx_bytes_total", "Bytes transmitted."),
		txErrors:      desc("tx_errors_total", "Frames the firmware failed to transmit."),
		rxPackets:     desc("rx_packets_total", "Frames received."),
		rxBytes:       desc("rx_bytes_total", "Bytes received."),
		rxDropped:     desc("rx_dropped_total", "Received frames dropped."),
		rxDuplicates:  desc("rx_duplicates_total", "Retransmitted data frames dropped as duplicates."),
		authMismatch:  desc("auth_challenge_mismatch_total", "Shared key challenge responses that did not match."),
		rateChanges:   desc("rate_changes_total", "Rate controller changes.", "direction"),
		status:        desc("status", "Association state, 0 stopped through 4 associated.", "bssid"),
		peers:         desc("peers", "Entries in the peer table."),
		ringFree:      desc("ring_free_slots", "Free descriptor ring slots.", "ring"),
		ringCorrupted: desc("ring_corrupt_total", "Allocations that found a corrupt ring head.", "ring"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commands
	ch <- c.cmdErrors
	ch <- c.cmdTimeouts
	ch <- c.txPackets
	ch <- c.txBytes
	ch <- c.txErrors
	ch <- c.rxPackets
	ch <- c.rxBytes
	ch <- c.rxDropped
	ch <- c.rxDuplicates
	ch <- c.authMismatch
	ch <- c.rateChanges
	ch <- c.status
	ch <- c.peers
	ch <- c.ringFree
	ch <- c.ringCorrupted
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.d.Stats()
	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	counter(c.commands, s.Commands)
	counter(c.cmdErrors, s.CommandErrors)
	counter(c.cmdTimeouts, s.CommandTimeouts)
	counter(c.txPackets, s.TxPackets)
	counter(c.txBytes, s.TxBytes)
	counter(c.txErrors, s.TxErrors)
	counter(c.rxPackets, s.RxPackets)
	counter(c.rxBytes, s.RxBytes)
	counter(c.rxDropped, s.RxDropped)
	counter(c.rxDuplicates, s.RxDuplicates)
	counter(c.authMismatch, s.AuthMismatches)
	counter(c.rateChanges, s.RateFallbacks, "fallback")
	counter(c.rateChanges, s.RateStepups, "stepup")

	link := c.d.Link()
	ch <- prometheus.MustNewConstMetric(c.status, prometheus.GaugeValue, float64(link.Status),
		net.HardwareAddr(link.BSSID[:]).String())
	ch <- prometheus.MustNewConstMetric(c.peers, prometheus.GaugeValue, float64(len(c.d.Peers())))

	rs := c.d.RingStats()
	ch <- prometheus.MustNewConstMetric(c.ringFree, prometheus.GaugeValue, float64(rs.TxFree), "tx")
	ch <- prometheus.MustNewConstMetric(c.ringFree, prometheus.GaugeValue, float64(rs.RxFree), "rx")
	counter(c.ringCorrupted, uint64(rs.TxCorrupt), "tx")
	counter(c.ringCorrupted, uint64(rs.RxCorrupt), "rx")
}

package acx

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soypat/acx/acxfw"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	d, _ := newTestDevice(t, acxfw.VariantACX111, nil)
	c := NewCollector(d, "wlan")
	require.Equal(t, 19, testutil.CollectAndCount(c))

	const want = `
# HELP wlan_acx_commands_total Firmware commands issued.
# TYPE wlan_acx_commands_total counter
wlan_acx_commands_total 3
# HELP wlan_acx_ring_free_slots Free descriptor ring slots.
# TYPE wlan_acx_ring_free_slots gauge
wlan_acx_ring_free_slots{ring="rx"} 0
wlan_acx_ring_free_slots{ring="tx"} 8
`
	err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"wlan_acx_commands_total", "wlan_acx_ring_free_slots")
	require.NoError(t, err)
}

func TestCollectorRegisters(t *testing.T) {
	d, _ := newTestDevice(t, acxfw.VariantACX100, nil)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(d, "")))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	require.True(t, names["acx_status"])
	require.True(t, names["acx_rate_changes_total"])
}

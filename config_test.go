package acx

import (
	"testing"
	"time"

	"github.com/soypat/acx/acxfw"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
variant: acx111
mode: adhoc
essid: lanparty
bssid: "02:11:22:33:44:55"
channel: 11
reg_domain: FCC
auth: shared
rates: 1,2,5.5,11
short_preamble: true
rate_control:
  stepup_threshold: 20
cmd_timeout: 250ms
`

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/acx.yaml", []byte(testConfigYAML), 0o644))
	cfg, err := LoadConfig(fs, "/etc/acx.yaml")
	require.NoError(t, err)

	assert.Equal(t, acxfw.VariantACX111, cfg.Variant)
	assert.Equal(t, ModeAdhoc, cfg.Mode)
	assert.Equal(t, "lanparty", cfg.ESSID)
	assert.Equal(t, [6]byte{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}, cfg.bssid)
	assert.EqualValues(t, 11, cfg.Channel)
	assert.Equal(t, acxfw.RegDomainFCC, cfg.RegDomain)
	assert.Equal(t, AuthSharedKey, cfg.Auth)
	assert.Equal(t, acxfw.RateB, cfg.Rates)
	assert.Equal(t, acxfw.Rate1|acxfw.Rate2, cfg.BasicRates)
	assert.True(t, cfg.ShortPreamble)
	assert.EqualValues(t, 20, cfg.RateControl.StepupThreshold)
	assert.EqualValues(t, 3, cfg.RateControl.FallbackThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.CmdTimeout)
	assert.Equal(t, defaultRingSize, cfg.RingSize)
	assert.Equal(t, defaultPeerCapacity, cfg.Peers.Capacity)
}

func TestLoadConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadConfig(fs, "/missing.yaml")
	require.Error(t, err)

	for name, body := range map[string]string{
		"syntax":      "variant: [acx100",
		"variant":     "variant: acx200",
		"mode":        "variant: acx100\nmode: mesh",
		"apNoESSID":   "variant: acx100\nmode: ap",
		"channel":     "variant: acx100\nchannel: 15",
		"regdomain":   "variant: acx100\nchannel: 12\nreg_domain: FCC",
		"rate":        "variant: acx100\nrates: 1,3",
		"basicSubset": "variant: acx100\nrates: 1,2\nbasic_rates: 11",
		"bssid":       "variant: acx100\nbssid: nonsense",
		"essidLong":   "variant: acx100\nessid: abcdefghijklmnopqrstuvwxyz0123456789",
	} {
		path := "/" + name + ".yaml"
		require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
		_, err := LoadConfig(fs, path)
		assert.Error(t, err, name)
	}
}

func TestDefaultConfig(t *testing.T) {
	c100 := DefaultConfig(acxfw.VariantACX100)
	require.NoError(t, c100.Validate())
	assert.Equal(t, acxfw.RateB, c100.Rates)
	assert.Equal(t, acxfw.RegDomainETSI, c100.RegDomain)
	assert.Equal(t, ModeManaged, c100.Mode)

	c111 := DefaultConfig(acxfw.VariantACX111)
	assert.Equal(t, acxfw.RateB|acxfw.RateG, c111.Rates)
	assert.Equal(t, acxfw.Rate1|acxfw.Rate2, c111.BasicRates)
}

package acx

import (
	"bytes"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/soypat/acx/acxfw"
	"github.com/soypat/acx/dot11"
	"github.com/soypat/acx/internal/simbus"
	"github.com/stretchr/testify/require"
)

func ethFrame(t *testing.T, dst, src [6]byte, payload []byte) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	eth := layers.Ethernet{
		DstMAC:       net.HardwareAddr(dst[:]),
		SrcMAC:       net.HardwareAddr(src[:]),
		EthernetType: layers.EthernetTypeIPv4,
	}
	err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, &eth, gopacket.Payload(payload))
	require.NoError(t, err)
	return append([]byte(nil), buf.Bytes()...)
}

func associatedDevice(t *testing.T) (*Device, *simbus.Bus, *simbus.AP) {
	t.Helper()
	d, bus := newTestDevice(t, acxfw.VariantACX111, func(c *Config) { c.ESSID = "acxnet" })
	ap := testAP("acxnet", 1)
	bus.AddAP(ap)
	require.NoError(t, d.Up())
	pump(t, d, bus)
	require.Equal(t, StatusAssociated, d.Status())
	return d, bus, ap
}

func TestSendEthRequiresAssociation(t *testing.T) {
	d, _ := newTestDevice(t, acxfw.VariantACX100, func(c *Config) { c.ESSID = "acxnet" })
	pkt := ethFrame(t, apBSSID, staMAC, make([]byte, 64))
	require.ErrorIs(t, d.SendEth(pkt), ErrNotAssociated)
	require.ErrorIs(t, d.SendEth(make([]byte, MTU+15)), ErrFrameTooLarge)
}

func TestEthernetRoundTrip(t *testing.T) {
	d, bus, ap := associatedDevice(t)
	payload := bytes.Repeat([]byte{0xa5}, 100)
	pkt := ethFrame(t, sta2MAC, staMAC, payload)
	require.NoError(t, d.SendEth(pkt))
	pump(t, d, bus)

	got := ap.Ethernet()
	require.Len(t, got, 1)
	require.Equal(t, pkt, got[0])
	s := d.Stats()
	require.NotZero(t, s.TxPackets)

	var rcvd [][]byte
	d.RecvEthHandle(func(pkt []byte) error {
		rcvd = append(rcvd, append([]byte(nil), pkt...))
		return nil
	})
	in := ethFrame(t, staMAC, sta2MAC, []byte("hello from the distribution system"))
	require.True(t, bus.SendEth(ap, in))
	delivered, err := d.PollOne()
	require.NoError(t, err)
	require.True(t, delivered)
	require.Len(t, rcvd, 1)
	require.Equal(t, in, rcvd[0])

	// Unicast to another station is not ours.
	other := ethFrame(t, sta2MAC, apBSSID, []byte("not for us"))
	require.True(t, bus.SendEth(ap, other))
	delivered, err = d.PollOne()
	require.NoError(t, err)
	require.False(t, delivered)
	require.Len(t, rcvd, 1)
}

func TestDuplicateDataFrameDropped(t *testing.T) {
	d, bus, _ := associatedDevice(t)
	var rcvd [][]byte
	d.RecvEthHandle(func(pkt []byte) error {
		rcvd = append(rcvd, append([]byte(nil), pkt...))
		return nil
	})
	data := func(seq uint16) []byte {
		buf := gopacket.NewSerializeBuffer()
		eth := ethFrame(t, staMAC, sta2MAC, []byte("retransmitted after a lost ack"))
		require.NoError(t, dot11.EncapEthernet(buf, eth, dot11.DirFromAP, apBSSID, seq))
		return buf.Bytes()
	}
	dropped := d.Stats().RxDropped
	frame := data(42)
	require.True(t, bus.Inject(frame, 100, 50))
	require.True(t, bus.Inject(frame, 100, 50))
	pump(t, d, bus)
	require.Len(t, rcvd, 1)
	s := d.Stats()
	require.EqualValues(t, 1, s.RxDuplicates)
	require.Equal(t, dropped+1, s.RxDropped)

	require.True(t, bus.Inject(data(43), 100, 50))
	pump(t, d, bus)
	require.Len(t, rcvd, 2)
	require.EqualValues(t, 1, d.Stats().RxDuplicates)
}

func TestNetFlags(t *testing.T) {
	d, bus := newTestDevice(t, acxfw.VariantACX100, func(c *Config) { c.ESSID = "acxnet" })
	require.Zero(t, d.NetFlags())
	bus.AddAP(testAP("acxnet", 1))
	require.NoError(t, d.Up())
	flags := d.NetFlags()
	require.NotZero(t, flags&net.FlagUp)
	require.Zero(t, flags&net.FlagRunning)
	pump(t, d, bus)
	require.NotZero(t, d.NetFlags()&net.FlagRunning)
	require.Equal(t, MTU, d.MTU())
	require.Equal(t, acxfw.VariantACX100, d.Variant())
}

func TestHardwareAddrBeforeInit(t *testing.T) {
	bus := simbus.New(acxfw.VariantACX100, testRingSize, staMAC)
	d := New(bus, bus)
	_, err := d.HardwareAddr6()
	require.Error(t, err)
}

func TestRateControlFollowsTxReports(t *testing.T) {
	d, bus, _ := associatedDevice(t)
	apRate := func() acxfw.Rate {
		for _, p := range d.Peers() {
			if p.Addr == apBSSID {
				return p.TxRate
			}
		}
		t.Fatal("access point not in peer table")
		return 0
	}
	require.Equal(t, acxfw.Rate1, apRate())

	send := func(n int) {
		t.Helper()
		for i := 0; i < n; i++ {
			require.NoError(t, d.SendEth(ethFrame(t, sta2MAC, staMAC, []byte{byte(i)})))
			pump(t, d, bus)
		}
	}
	send(10)
	require.Equal(t, acxfw.Rate2, apRate())
	require.EqualValues(t, 1, d.Stats().RateStepups)

	bus.SetTxResult(func(frame []byte, td acxfw.TxDesc) (bool, acxfw.Rate) {
		return true, td.Rate
	})
	// Reports queued under the old rate are ignored.
	send(3)
	require.Equal(t, acxfw.Rate2, apRate())
	send(3)
	require.Equal(t, acxfw.Rate1, apRate())
	s := d.Stats()
	require.EqualValues(t, 1, s.RateFallbacks)
	require.EqualValues(t, 6, s.TxErrors)
}

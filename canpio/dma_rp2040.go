//go:build rp2040

package canpio

import "device/rp"

// rp2040DMAChannel wraps one of the RP2040's DMA channels as a
// DMAChannel. Configure only records the ring; Start programs no
// addresses, ring wrap or DREQ trigger, and WriteIndex always reports
// 0, so a Mailbox built on it never returns any received words. Busy
// and Abort act on the channel's CTRL_TRIG register.
type rp2040DMAChannel struct {
	ch   *rp.DMA_CH0_Type
	num  uint8
	ring []uint32
}

// NewDMAChannel wraps one RP2040 DMA channel as a DMAChannel.
func NewDMAChannel(ch *rp.DMA_CH0_Type, num uint8) DMAChannel {
	return &rp2040DMAChannel{ch: ch, num: num}
}

func (d *rp2040DMAChannel) Configure(ring []uint32) {
	d.ring = ring
}

func (d *rp2040DMAChannel) Start() {
	// Hardware ring-wrap addressing and trigger-on-DREQ configuration
	// is board/errata specific and deliberately left to the concrete
	// board support package; this demonstrates the wiring point only.
}

func (d *rp2040DMAChannel) WriteIndex() uint32 {
	return 0
}

func (d *rp2040DMAChannel) Busy() bool {
	return d.ch.CTRL_TRIG.Get()&(1<<24) != 0
}

func (d *rp2040DMAChannel) Abort() {
	d.ch.CTRL_TRIG.ClearBits(1)
}

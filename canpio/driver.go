package canpio

import (
	"errors"

	"github.com/can2040/can2040/pio"
)

// ErrClaimFailed is returned by New when the four state machines a
// Driver needs are not all available on the given PIO block.
var ErrClaimFailed = errors.New("canpio: could not claim 4 state machines")

// bitOversample is the number of PIO clock cycles per CAN bit time.
// Each state machine samples or drives the bus at this rate; it is not
// configurable because the shared program's delay counts are tuned to
// it.
const bitOversample = 16

// Driver owns the four state machines (sync, rx, ack, tx) that
// together realize a CAN bus on one PIO block, plus the GPIO pins they
// share. It is the direct analog of can2040's pio_sync_setup /
// pio_rx_setup / pio_ack_setup / pio_tx_setup / pio_tx_send /
// pio_ack_inject family of functions, expressed against pio.PIO
// instead of raw register writes.
type Driver struct {
	p    *pio.PIO
	sync pio.StateMachine
	rx   pio.StateMachine
	ack  pio.StateMachine
	tx   pio.StateMachine

	gpioRx, gpioTx uint8
	progOffset     uint8
}

// New claims the sync, rx, ack and tx state machines (in that order)
// on p. gpioRx and gpioTx are the GPIO numbers wired to the
// transceiver's RX and TX pins.
func New(p *pio.PIO, gpioRx, gpioTx uint8) (*Driver, error) {
	d := &Driver{p: p, gpioRx: gpioRx, gpioTx: gpioTx}
	sms := [4]*pio.StateMachine{&d.sync, &d.rx, &d.ack, &d.tx}
	for _, slot := range sms {
		sm, err := p.ClaimStateMachine()
		if err != nil {
			return nil, ErrClaimFailed
		}
		*slot = sm
	}
	return d, nil
}

// Setup loads the shared program and configures all four state
// machines for the given system clock and CAN bitrate (both in Hz),
// then starts sync, rx and ack running. tx is left disabled until a
// caller injects work with TxSend or AckInject.
func (d *Driver) Setup(sysClockHz, bitrate uint32) error {
	const allSMs = 0x0f
	d.p.RestartMask(allSMs)
	d.p.RestartClkDivMask(allSMs)

	if err := d.p.AddProgramAtOffset(Program(), 0, 0); err != nil {
		return err
	}
	d.progOffset = 0

	whole, frac, err := pio.ClkDivFromFrequency(bitrate*bitOversample, sysClockHz)
	if err != nil {
		return err
	}

	d.setupSync(whole, frac)
	d.setupRx(whole, frac)
	d.setupAck(whole, frac)
	d.setupTx(whole, frac)

	d.p.EnableMask(0x07, true) // sync, rx, ack; tx stays disabled
	return nil
}

func (d *Driver) setupSync(whole uint16, frac uint8) {
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetClkDivIntFrac(whole, frac)
	cfg.SetWrap(OffsetSyncSignalStart, OffsetSyncEnd-1)
	cfg.SetJmpPin(d.gpioRx)
	cfg.SetSetPins(d.gpioRx, 1)
	d.sync.SetConfig(cfg)
	d.sync.SetPindirsConsecutive(d.gpioRx, 1, false)
	d.sync.Exec(pio.EncodeJmp(OffsetSyncEntry, pio.JmpAlways))
}

func (d *Driver) setupRx(whole uint16, frac uint8) {
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetClkDivIntFrac(whole, frac)
	cfg.SetWrap(OffsetSharedRxRead, OffsetSharedRxEnd-1)
	cfg.SetInPins(d.gpioRx)
	cfg.SetInShift(false, true, 8)
	cfg.SetFIFOJoin(pio.FifoJoinRx)
	d.rx.SetConfig(cfg)
	d.rx.Exec(pio.EncodeJmp(OffsetSharedRxRead, pio.JmpAlways))
}

func (d *Driver) setupAck(whole uint16, frac uint8) {
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetClkDivIntFrac(whole, frac)
	cfg.SetWrap(OffsetSharedRxRead, OffsetAckEnd-1)
	cfg.SetInPins(d.gpioRx)
	d.ack.SetConfig(cfg)
	d.ack.Exec(pio.EncodeSet(pio.SrcDestY, 0))
	d.ack.Exec(pio.EncodeMov(pio.SrcDestOSR, pio.SrcDestY))
	d.ack.Exec(pio.EncodeMov(pio.SrcDestX, pio.SrcDestY)) // approximates `mov x, !y`
	d.ack.Exec(pio.EncodeJmp(OffsetAckNoMatch, pio.JmpAlways))
}

func (d *Driver) setupTx(whole uint16, frac uint8) {
	cfg := pio.DefaultStateMachineConfig()
	cfg.SetClkDivIntFrac(whole, frac)
	cfg.SetWrap(0, 0x1f)
	cfg.SetJmpPin(d.gpioRx)
	cfg.SetSetPins(d.gpioTx, 1)
	cfg.SetOutPins(d.gpioTx, 1)
	cfg.SetOutShift(false, true, 32)
	cfg.SetFIFOJoin(pio.FifoJoinTx)
	d.tx.SetConfig(cfg)
	d.tx.Exec(pio.EncodeSet(pio.SrcDestPins, 1))
	d.tx.Exec(pio.EncodeSet(pio.SrcDestPinDirs, 1))
}

// resetTx brings the tx state machine back to a known, disabled state
// before loading new work, the way pio_tx_reset clears a half-sent
// word out of the joined TX FIFO.
func (d *Driver) resetTx() {
	d.p.EnableMask(0x07, true)
	d.p.EnableMask(0x08, false)
	d.p.RestartMask(0x08)
	if !d.tx.IsTxFIFOEmpty() {
		d.tx.ClearFIFOs()
	}
}

// TxSend loads data (32-bit words shifted out MSB first, as produced
// by the bit stuffer) into the tx state machine's FIFO and starts
// transmission. Every word in data is sent.
func (d *Driver) TxSend(data []uint32) {
	d.resetTx()
	d.tx.Exec(pio.EncodeJmp(OffsetTxStart, pio.JmpAlways))
	d.tx.Exec(pio.EncodeWait(true, pio.WaitSrcIRQ, 0))
	for _, word := range data {
		d.tx.TxPut(word)
	}
	d.p.EnableMask(0x0f, true)
}

// TxCancel aborts an in-progress transmission and releases the bus
// back to a recessive (idle) level.
func (d *Driver) TxCancel() {
	d.p.EnableMask(0x07, true)
	d.p.EnableMask(0x08, false)
	d.tx.Exec(pio.EncodeSet(pio.SrcDestPins, 1))
}

// ackKey packs the CRC bits seen so far and the current receive bit
// position into the word the ack program compares against, the same
// way pio_ack_inject does: key = (crc_bits & 0x1fffff) | (-rx_bit_pos << 21).
func ackKey(crcBits uint32, rxBitPos uint32) uint32 {
	return (crcBits & 0x1fffff) | uint32(-int32(rxBitPos))<<21
}

// AckInject arranges for the tx state machine to drive a dominant ACK
// bit onto the bus if, and only if, the ack state machine's running
// CRC and bit count exactly match crcBits/rxBitPos at the moment the
// ACK slot arrives — i.e. if this controller actually received the
// frame it is about to acknowledge.
func (d *Driver) AckInject(crcBits uint32, rxBitPos uint32) {
	d.resetTx()
	d.tx.Exec(pio.EncodeJmp(OffsetTxStart, pio.JmpAlways))
	d.tx.Exec(pio.EncodeIRQClear(false, 2))
	d.tx.Exec(pio.EncodeWait(true, pio.WaitSrcIRQ, 2))
	d.tx.TxPut(0x7fffffff)
	d.p.EnableMask(0x0f, true)
	d.ack.TxPut(ackKey(crcBits, rxBitPos))
}

// AckCancel withdraws a pending AckInject by feeding the ack state
// machine a key that cannot match any legitimate CRC/bit-position pair.
func (d *Driver) AckCancel() {
	d.ack.TxPut(0)
}

// RxCheckStall reports whether the rx state machine's FIFO overflowed
// (the DMA/CPU failed to keep up with an arriving bit stream).
func (d *Driver) RxCheckStall() bool {
	return d.rx.RxStalled()
}

// SyncEnableIdleIRQ arms the bus-idle notification delivered through
// the sync state machine's IRQ line: it both clears any stale latched
// flag and re-enables forwarding, mirroring pio_sync_enable_idle_irq's
// combination of an irq-flag write and an inte0 write.
func (d *Driver) SyncEnableIdleIRQ() {
	d.p.ClearIRQ(1 << d.sync.Index())
	d.p.SetIRQEnabled(1<<d.sync.Index(), true)
}

// SyncDisableIdleIRQ disarms the bus-idle notification, matching
// pio_sync_disable_idle_irq's inte0 write. The flag itself is left as
// GetIRQ/SyncCheckIdle found it; only forwarding is turned off.
func (d *Driver) SyncDisableIdleIRQ() {
	d.p.SetIRQEnabled(1<<d.sync.Index(), false)
}

// ResyncSync restarts the sync state machine from its entry point,
// recovering from its idle-bit counter wrapping around without ever
// seeing a recessive-to-dominant edge to reset it.
func (d *Driver) ResyncSync() {
	d.p.RestartMask(1 << d.sync.Index())
	d.sync.Exec(pio.EncodeJmp(OffsetSyncEntry, pio.JmpAlways))
}

// SyncCheckIdle reports whether the sync state machine has flagged
// the bus as idle (ten consecutive recessive bits, per C1).
func (d *Driver) SyncCheckIdle() bool {
	return d.p.GetIRQ()&(1<<d.sync.Index()) != 0
}

// RxFIFOEmpty reports whether the rx state machine's FIFO is empty,
// i.e. has no data waiting (used by the DMA/foreground drain loop).
func (d *Driver) RxFIFOEmpty() bool { return d.rx.IsRxFIFOEmpty() }

// RxGet pops one raw 8-bit-packed word from the rx state machine's FIFO.
func (d *Driver) RxGet() uint32 { return d.rx.RxGet() }

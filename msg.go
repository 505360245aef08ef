package can2040

// Msg is a single CAN 2.0B frame: an 11-bit standard identifier, a
// data length code (0-8) and up to 8 payload bytes. Extended
// (29-bit) identifiers and RTR frames are not represented; the
// shared PIO program only recognizes 11-bit data frames.
type Msg struct {
	ID     uint32
	Length uint8
	Data   [8]byte
}

// sanitize clamps a caller-supplied Msg to the bit widths the wire
// format allows, mirroring can2040_transmit's "& 0x7ff" / "len > 8 ?
// 8 : len" treatment of out-of-range fields rather than rejecting them.
func (m Msg) sanitize() Msg {
	m.ID &= 0x7ff
	if m.Length > 8 {
		m.Length = 8
	}
	return m
}

// header packs the identifier and data length into the 19-bit field
// the PIO program and CRC both operate on: the dominant start-of-frame
// bit, 11 bits of identifier, the RTR, IDE and r0 bits (always zero
// here), and 4 bits of DLC.
func (m Msg) header() uint32 {
	return (m.ID << 7) | uint32(m.Length)
}

// NotifyKind distinguishes the four reasons Controller invokes its
// receive callback: an inbound frame, an error, or a loopback
// notification for one of this controller's own transmissions.
type NotifyKind uint32

const (
	// NotifyRX is delivered for every frame successfully received from
	// another node. A frame this controller transmitted itself is
	// reported as NotifyTX instead, never as NotifyRX.
	NotifyRX NotifyKind = iota
	// NotifyTX is delivered once one of this controller's own queued
	// messages has been fully acknowledged on the bus.
	NotifyTX
	// NotifyTXFail is delivered when a queued message is discarded
	// after excessive cancellation (arbitration loss/bus contention).
	NotifyTXFail
	// NotifyError is delivered only when the rx FIFO overflows and a
	// frame is lost outright (ErrRxOverflow); the accompanying Msg is
	// always zero. Routine per-frame faults — a bitstuff violation, an
	// unsupported header, a CRC mismatch — are never reported here:
	// like every other node on the bus, this controller just discards
	// the frame and moves on, logging the reason internally instead.
	NotifyError
)

package can2040

// bitUnstuffer incrementally removes CAN bit stuffing (an inserted
// complement bit after every five same-valued bits) from a stream of
// raw bits arriving 8 at a time from the PIO rx state machine, and
// groups the destuffed bits into the field widths the parser asks for.
//
// stuffedBits holds the most recent raw bits (MSB-aligned growth);
// countStuff is how many of its low bits are still unconsumed.
// unstuffedBits accumulates destuffed bits until countUnstuff reaches
// zero, at which point the caller has a complete field.
type bitUnstuffer struct {
	stuffedBits   uint32
	countStuff    uint32
	unstuffedBits uint32
	countUnstuff  uint32
}

// addBits appends the low count bits of data (newest bits in the low
// positions) to the raw bit history.
func (bu *bitUnstuffer) addBits(data uint32, count uint32) {
	mask := uint32(1)<<count - 1
	bu.stuffedBits = (bu.stuffedBits << count) | (data & mask)
	bu.countStuff = count
}

// setCount starts extraction of a new field of the given bit width.
func (bu *bitUnstuffer) setCount(count uint32) {
	bu.unstuffedBits = 0
	bu.countUnstuff = count
}

// clearState drops a spurious stuff bit that unstuf_clear_state's
// caller (the CRC->ACK transition) knows is present in the bit
// history but not yet accounted for by a pullBits edge scan — it
// happens when the field boundary itself falls exactly on a stuff
// position.
func (bu *bitUnstuffer) clearState() {
	sb := bu.stuffedBits
	edges := sb ^ (sb >> 1)
	re := edges >> bu.countStuff
	if re&1 == 0 && re&0xf != 0 {
		bu.stuffedBits ^= 1 << bu.countStuff
	}
}

// pullResult is the outcome of one pullBits call.
type pullResult int

const (
	// pullNeedMore means the current field is not yet fully extracted;
	// the caller should wait for more raw bits before calling again.
	pullNeedMore pullResult = 1
	// pullComplete means the requested field count bits are now in
	// unstuffedBits.
	pullComplete pullResult = 0
	// pullStuffErrorHigh means six consecutive recessive (1) bits were
	// seen: this is either a legitimate bus-idle condition or a
	// genuine bitstuff violation, and is reported distinctly from
	// pullStuffErrorLow because the two mean very different things to
	// the frame parser.
	pullStuffErrorHigh pullResult = -1
	// pullStuffErrorLow means six consecutive dominant (0) bits were
	// seen: always a protocol error.
	pullStuffErrorLow pullResult = -2
)

// pullBits extracts destuffed bits from the raw bit history into
// unstuffedBits, stopping a run of five same-valued bits to drop the
// stuff bit that follows it, until either the requested field is
// complete, more raw data is needed, or a six-bit stuffing violation
// is found.
func (bu *bitUnstuffer) pullBits() pullResult {
	sb := bu.stuffedBits
	edges := sb ^ (sb >> 1)
	ub := bu.unstuffedBits
	cs, cu := bu.countStuff, bu.countUnstuff
	for {
		if cu == 0 {
			bu.unstuffedBits, bu.countStuff, bu.countUnstuff = ub, cs, cu
			return pullComplete
		}
		if cs == 0 {
			bu.unstuffedBits, bu.countStuff, bu.countUnstuff = ub, cs, cu
			return pullNeedMore
		}
		cs--
		if (edges>>(cs+1))&0xf != 0 {
			cu--
			ub |= ((sb >> cs) & 1) << cu
		} else if (edges>>cs)&0x1f == 0 {
			bu.unstuffedBits, bu.countStuff, bu.countUnstuff = ub, cs, cu
			if (sb>>cs)&1 != 0 {
				return pullStuffErrorHigh
			}
			return pullStuffErrorLow
		}
	}
}

package can2040

// parseState enumerates the receive frame state machine's phases.
type parseState uint8

const (
	stateStart parseState = iota
	stateData
	stateCRC
	stateAck
	stateEOF
	stateDiscard
)

// goDiscard abandons the frame in progress: any self-transmission in
// flight is cancelled (its ACK slot no longer applies), and the sync
// state machine's idle-bus IRQ is re-armed so a run of recessive bits
// is noticed even while otherwise ignoring the bus.
func (c *Controller) goDiscard() {
	c.parseState = stateDiscard
	c.unstuf.setCount(8)
	c.txCancel()
	c.driver.SyncEnableIdleIRQ()
}

// goError is goDiscard's twin for bitstuff violations (six consecutive
// dominant bits); a CRC mismatch goes through goDiscard directly. can2040
// keeps them as distinct call sites even though the bodies are
// identical today, since a future revision may want to count or
// report them differently. Like the original, this never reaches
// NotifyFunc: a bitstuff violation is routine bus noise (arbitration
// losers, garbled frames) that every other node on the bus also
// discards silently, so only the foreground log records it.
func (c *Controller) goError() {
	c.goDiscard()
	c.log.WithError(ErrBitStuff).Debug("can2040: bit stuff violation")
}

// goIdle returns the parser to its resting state between frames,
// finishing up whatever frame was just completed (successful receipt,
// own-transmission confirmation, or neither).
func (c *Controller) goIdle() {
	if c.parseState == stateStart {
		if c.unstuf.countStuff == 0 && c.unstuf.stuffedBits == 0xffffffff {
			// The sync state machine's idle counter wrapped without a
			// recessive->dominant edge resetting it; reinitialize it.
			c.driver.ResyncSync()
			c.unstuf.stuffedBits = 0
			c.goDiscard()
			return
		}
		c.unstuf.setCount(18)
		return
	}
	c.driver.SyncDisableIdleIRQ()
	if c.parseState == stateEOF {
		ub, cu := c.unstuf.unstuffedBits, c.unstuf.countUnstuff
		if (ub>>cu)+1 == uint32(1)<<(6-cu) {
			if c.txCheckSelfTransmit() {
				c.txFinalize()
			} else {
				c.notify(NotifyRX, c.parseMsg, ErrNone)
			}
		}
	}
	c.driver.AckCancel()
	c.txDoSchedule()
	c.parseState = stateStart
	c.unstuf.setCount(18)
}

// goCRC transitions from the header/data fields into receiving the
// 15-bit CRC field, and — unless this frame is one this controller is
// transmitting itself — arms the PIO tx state machine to drive a
// dominant ACK bit if, and only if, the bits it independently tracked
// agree with what was just received.
func (c *Controller) goCRC() {
	c.parseState = stateCRC
	c.unstuf.setCount(15)
	c.parseCRC &= 0x7fff

	if c.txCheckSelfTransmit() {
		return
	}

	cs := c.unstuf.countStuff
	last := (c.unstuf.stuffedBits >> cs) << 15
	last |= c.parseCRC
	count := bitstuff(&last, 15+1) - 1
	last = (last << 1) | 1
	pos := c.rawBitCount - cs - 1
	c.driver.AckInject(last, pos+count+1)
}

// updateStart processes the 18-bit header that follows the
// start-of-frame bit (which the unstuffer consumes): identifier,
// RTR/reserved bits (which must be zero — this controller only
// understands standard 11-bit data frames), and DLC. An unsupported
// header is silently discarded, not reported through NotifyFunc: every
// other node on the bus sees and ignores the same frame, so it is not
// an error specific to this controller.
func (c *Controller) updateStart(data uint32) {
	if data&((1<<18)|(7<<4)) != 0 {
		c.goDiscard()
		c.log.WithError(ErrFormat).Debug("can2040: unsupported frame header")
		return
	}
	c.parseHdr = data
	c.parseCRC = crcBits(0, data, 18)
	rdlc := data & 0xf
	dlc := rdlc
	if dlc > 8 {
		dlc = 8
	}
	c.parseMsg = Msg{ID: (data >> 7) & 0x7ff, Length: uint8(dlc)}
	c.parseDataPos = 0
	if uint32(c.parseDataPos) >= dlc {
		c.goCRC()
	} else {
		c.parseState = stateData
		c.unstuf.setCount(8)
	}
	c.driver.SyncEnableIdleIRQ()
}

func (c *Controller) updateData(data uint32) {
	c.parseCRC = crcBits(c.parseCRC, data, 8)
	c.parseMsg.Data[c.parseDataPos] = byte(data)
	c.parseDataPos++
	if uint32(c.parseDataPos) >= uint32(c.parseMsg.Length) {
		c.goCRC()
	} else {
		c.unstuf.setCount(8)
	}
}

// updateCRC discards the frame, without ACKing or notifying, if the
// locally computed CRC disagrees with what was received: per the CAN
// protocol a CRC mismatch is a routine arbitration/noise outcome that
// every listening node reacts to identically, not a fault to surface
// to this controller's caller.
func (c *Controller) updateCRC(data uint32) {
	if c.parseCRC != data {
		c.driver.AckCancel()
		c.goDiscard()
		c.log.WithError(ErrCRC).Debug("can2040: crc mismatch")
		return
	}
	c.parseState = stateAck
	c.unstuf.clearState()
	c.unstuf.setCount(2)
}

func (c *Controller) updateAck(data uint32) {
	c.driver.AckCancel()
	if data != 0x02 {
		c.goDiscard()
		if c.driver.RxCheckStall() {
			c.notify(NotifyError, Msg{}, ErrRxOverflow)
		}
		return
	}
	c.parseState = stateEOF
	c.unstuf.setCount(6)
}

func (c *Controller) updateEOF(data uint32) {
	// A well-formed end-of-frame always triggers a bitstuff condition
	// (it is six recessive bits); reaching here with a complete field
	// means framing was lost somewhere, so give up on this frame.
	c.goDiscard()
}

func (c *Controller) updateDiscard(data uint32) {
	c.goDiscard()
}

// update dispatches one newly-extracted field to the phase-specific
// handler.
func (c *Controller) update(data uint32) {
	switch c.parseState {
	case stateStart:
		c.updateStart(data)
	case stateData:
		c.updateData(data)
	case stateCRC:
		c.updateCRC(data)
	case stateAck:
		c.updateAck(data)
	case stateEOF:
		c.updateEOF(data)
	case stateDiscard:
		c.updateDiscard(data)
	}
}

// processRx feeds one raw byte from the rx FIFO through the
// unstuffer, dispatching every field it completes and reacting to any
// bitstuff condition it surfaces along the way.
func (c *Controller) processRx(rxByte uint32) {
	c.unstuf.addBits(rxByte, 8)
	c.rawBitCount += 8

	for {
		switch c.unstuf.pullBits() {
		case pullComplete:
			c.update(c.unstuf.unstuffedBits)
		case pullNeedMore:
			return
		case pullStuffErrorHigh:
			c.goIdle()
		case pullStuffErrorLow:
			c.goError()
		}
	}
}

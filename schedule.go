package can2040

// cancelCeiling bounds how many times a queued transmission may lose
// arbitration or be aborted by bus activity before Controller gives
// up on it and reports NotifyTXFail, freeing the queue slot for later
// messages. can2040 calls this an "XXX" in its own source: the right
// backoff policy is an open question, and a flat ceiling is a
// placeholder, not a tuned value.
const cancelCeiling = 32

// txDoSchedule starts transmitting the queue's head slot if nothing
// is already in flight and the queue is non-empty.
func (c *Controller) txDoSchedule() {
	if c.inTransmit {
		return
	}
	slot, ok := c.txQueue.front()
	if !ok {
		return
	}
	if c.cancelCount > cancelCeiling {
		c.cancelCount = 0
		failed := slot.msg
		c.txQueue.advance()
		c.notify(NotifyTXFail, failed, ErrNone)
		slot, ok = c.txQueue.front()
		if !ok {
			return
		}
	}
	c.inTransmit = true
	c.driver.TxSend(slot.stuffedData[:slot.stuffedWords])
}

// txCancel aborts whatever transmission is in flight, counting the
// cancellation toward cancelCeiling.
func (c *Controller) txCancel() {
	if !c.inTransmit {
		return
	}
	c.inTransmit = false
	c.cancelCount++
	c.driver.TxCancel()
}

// txCheckSelfTransmit reports whether the frame currently being
// received is this controller's own in-flight transmission reflected
// back by the bus (every node, including the sender, receives its own
// frame). If the CRC and message fields don't match what was queued —
// a legitimate frame from elsewhere happened to start transmitting at
// the same moment and beat this controller's arbitration — the
// in-flight transmission is cancelled instead.
func (c *Controller) txCheckSelfTransmit() bool {
	if !c.inTransmit {
		return false
	}
	slot, ok := c.txQueue.front()
	if !ok {
		c.txCancel()
		return false
	}
	pm := c.parseMsg
	if slot.crc == c.parseCRC && slot.msg.ID == pm.ID && slot.msg.Length == pm.Length &&
		slot.msg.Data == pm.Data {
		return true
	}
	c.txCancel()
	return false
}

// txFinalize retires a successfully-acknowledged self-transmission.
func (c *Controller) txFinalize() {
	c.txCancel()
	c.cancelCount = 0
	slot, ok := c.txQueue.front()
	if !ok {
		return
	}
	msg := slot.msg
	c.txQueue.advance()
	c.notify(NotifyTX, msg, ErrNone)
}

// Package can2040 implements a software CAN 2.0B controller driven by
// four PIO state machines and a DMA-fed receive mailbox, for hosts
// with no hardware CAN peripheral. It reproduces the wire-level
// behavior of Kevin O'Connor's can2040 (github.com/KevinOConnor/can2040)
// against the canpio package's PIO driver.
package can2040

import "github.com/can2040/can2040/canpio"

// busDriver is the subset of *canpio.Driver the parser and scheduler
// need. It exists so Controller's protocol logic can be exercised by
// tests against a software double instead of real PIO hardware; in
// production the only implementation is *canpio.Driver.
type busDriver interface {
	Setup(sysClockHz, bitrate uint32) error
	TxSend(data []uint32)
	TxCancel()
	AckInject(crcBits uint32, rxBitPos uint32)
	AckCancel()
	RxCheckStall() bool
	SyncEnableIdleIRQ()
	SyncDisableIdleIRQ()
	SyncCheckIdle() bool
	ResyncSync()
}

// mailbox is the subset of *canpio.Mailbox Controller needs to drain
// received bytes.
type mailbox interface {
	Drain() []uint32
}

// NotifyFunc receives every frame-level event a Controller produces:
// successfully received frames, confirmation of this controller's own
// transmissions, failed transmissions, and protocol errors. It is
// called synchronously from inside ProcessInterrupts (and from
// Transmit, whose scheduler kick may report NotifyTXFail), so it runs
// in whatever context the caller invokes those methods from. err is
// only meaningful when kind is NotifyError; it is ErrNone otherwise.
type NotifyFunc func(kind NotifyKind, msg Msg, err ErrorKind)

// Controller is a single software CAN bus interface: one PIO block's
// four state machines, one DMA-fed mailbox, and the bit-unstuffing,
// frame-parsing and transmit-scheduling state machines that turn raw
// bus bits into Msg values and back.
//
// A Controller is not safe for concurrent use by multiple goroutines
// except as documented per method: Transmit and CheckTransmit may be
// called from a foreground goroutine concurrently with
// ProcessInterrupts being invoked from interrupt context, matching
// can2040's single-producer/single-consumer transmit queue.
type Controller struct {
	driver  busDriver
	mailbox mailbox
	notify  NotifyFunc
	log     Logger

	unstuf       bitUnstuffer
	parseState   parseState
	parseHdr     uint32
	parseCRC     uint32
	parseMsg     Msg
	parseDataPos uint8
	rawBitCount  uint32

	txQueue     txQueue
	inTransmit  bool
	cancelCount uint32

	started bool
}

// NewController constructs a Controller around a canpio.Driver
// already wired to a PIO block and GPIO pins. Setup and CallbackConfig
// must both be called before Start.
func NewController(driver *canpio.Driver, mbox *canpio.Mailbox) *Controller {
	return &Controller{driver: driver, mailbox: mbox, log: defaultLogger}
}

// Setup resets the controller to its power-on state: the transmit
// queue is emptied and all receive parser state is zeroed, matching
// can2040_setup zeroing the whole struct. Start later puts the parser
// into its initial discard phase.
func (c *Controller) Setup() {
	*c = Controller{driver: c.driver, mailbox: c.mailbox, notify: c.notify, log: c.log}
}

// CallbackConfig installs the function that receives frame and error
// notifications. It must be called before Start.
func (c *Controller) CallbackConfig(notify NotifyFunc) {
	c.notify = notify
}

// Start configures the PIO program for the given system clock and bus
// bitrate (both Hz) and begins listening, putting the parser into its
// initial discard state until the bus has been observed idle.
func (c *Controller) Start(sysClockHz, bitrate uint32) error {
	if c.notify == nil {
		c.notify = func(NotifyKind, Msg, ErrorKind) {}
	}
	if err := c.driver.Setup(sysClockHz, bitrate); err != nil {
		c.log.WithError(err).Error("can2040: pio setup failed")
		return err
	}
	c.goDiscard()
	c.started = true
	c.log.WithField("bitrate", bitrate).Info("can2040: controller started")
	return nil
}

// Shutdown matches can2040_shutdown: intentionally a no-op today. The
// original documents this as unimplemented (its body is a bare "XXX"
// comment); callers that need to tear down a bus entirely should stop
// calling ProcessInterrupts and discard the Controller rather than
// rely on any cleanup happening here.
func (c *Controller) Shutdown() {
}

// CheckTransmit reports whether Transmit currently has room to queue
// another message without blocking or failing.
func (c *Controller) CheckTransmit() bool {
	return !c.txQueue.full()
}

// Transmit encodes msg (computing its CRC and bit-stuffed wire
// representation immediately) and enqueues it for transmission,
// kicking the scheduler directly if the bus is currently idle. It
// returns false if the transmit queue is full.
func (c *Controller) Transmit(msg Msg) bool {
	msg = msg.sanitize()
	if !c.txQueue.push(msg) {
		c.log.WithField("id", msg.ID).Warn("can2040: transmit queue full")
		return false
	}
	if c.parseState == stateStart {
		c.txDoSchedule()
	}
	return true
}

// ProcessInterrupts drains any bytes the DMA mailbox has collected
// since it was last called and advances the receive parser, then
// checks for the idle-bus condition the PIO sync state machine flags.
// It is the Go-level equivalent of can2040's combined dma_irq_handler
// / pio_irq_handler pair: on real hardware it is called from the DMA
// channel's interrupt vector (with the PIO IRQ simply forcing an extra
// DMA interrupt so both conditions funnel through one handler, per
// can2040's pio_irq_handler/dma_inte trick); in a polling deployment
// it can be called from a tight loop instead.
func (c *Controller) ProcessInterrupts() {
	for _, word := range c.mailbox.Drain() {
		// Each mailbox entry carries one byte popped from the rx state
		// machine's FIFO (it autopushes every 8 bits); only the low
		// byte is meaningful.
		c.processRx(word & 0xff)
	}
	if c.parseState != stateStart && c.driver.SyncCheckIdle() {
		c.goIdle()
	}
}

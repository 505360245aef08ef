package canpio

import (
	"errors"
	"runtime"
	"time"
)

// errTimeout is returned when a DMA or FIFO wait exceeds its deadline.
var errTimeout = errors.New("canpio: operation timed out")

// gosched yields to the Go scheduler while busy-waiting on hardware,
// the same pattern tinygo-org/pio/piolib uses around DMA/FIFO polling
// so a single goroutine program doesn't starve other goroutines.
func gosched() { runtime.Gosched() }

// deadline tracks an absolute point in time to give up a busy-wait.
type deadline struct {
	t time.Time
}

func (d deadline) expired() bool { return !d.t.IsZero() && time.Now().After(d.t) }

// deadliner produces deadlines a fixed duration from now; zero value
// means "wait forever".
type deadliner struct {
	timeout time.Duration
}

func (dl deadliner) newDeadline() deadline {
	if dl.timeout == 0 {
		return deadline{}
	}
	return deadline{t: time.Now().Add(dl.timeout)}
}

func (dl *deadliner) setTimeout(timeout time.Duration) { dl.timeout = timeout }

// DMAChannel is the hardware contract for the single DMA channel that
// drains the rx state machine's FIFO in the background. Only the
// subset of behavior canpio's mailbox drain needs is exposed; register
// layout and channel claiming are a Device implementation's concern.
type DMAChannel interface {
	// Configure arms the channel to repeatedly copy words from the rx
	// state machine's FIFO into ring, wrapping after len(ring) words,
	// triggered by the rx DREQ.
	Configure(ring []uint32)
	// Start begins the configured transfer.
	Start()
	// WriteIndex returns the current write position into ring, i.e.
	// how many words the channel has written modulo len(ring).
	WriteIndex() uint32
	// Busy reports whether a transfer is in progress.
	Busy() bool
	// Abort stops an in-progress transfer immediately.
	Abort()
}

// Mailbox is a fixed-size ring buffer drained by DMA and consumed by
// the foreground unstuffer/parser. It mirrors can2040's use of a small
// DMA ring plus a software read cursor, rather than per-word
// interrupts, to keep up with a CAN bus's worst-case bit rate.
type Mailbox struct {
	ch   DMAChannel
	ring []uint32

	readIndex uint32
}

// NewMailbox wires a DMA channel to a ring of the given size (in
// 32-bit words) and arms it.
func NewMailbox(ch DMAChannel, ringWords int) *Mailbox {
	m := &Mailbox{ch: ch, ring: make([]uint32, ringWords)}
	m.ch.Configure(m.ring)
	m.ch.Start()
	return m
}

// Drain returns any words the DMA channel has written since the last
// Drain call, advancing the read cursor. It never blocks.
func (m *Mailbox) Drain() []uint32 {
	write := m.ch.WriteIndex()
	n := uint32(len(m.ring))
	avail := (write - m.readIndex) % n
	if avail == 0 {
		return nil
	}
	out := make([]uint32, avail)
	for i := uint32(0); i < avail; i++ {
		out[i] = m.ring[(m.readIndex+i)%n]
	}
	m.readIndex = (m.readIndex + avail) % n
	return out
}

// waitUntil busy-waits for cond, yielding between polls, until either
// cond is true or dl expires.
func waitUntil(dl deadline, cond func() bool) error {
	for !cond() {
		if dl.expired() {
			return errTimeout
		}
		gosched()
	}
	return nil
}

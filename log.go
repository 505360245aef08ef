package can2040

import "github.com/sirupsen/logrus"

// Logger is the subset of logrus.FieldLogger this package calls.
// A Controller logs from Start, from Transmit when the queue is full,
// and at Debug level from the receive parser when it discards a frame
// (goError, updateStart, updateCRC). The parser runs inside
// ProcessInterrupts, so the logger is called from whatever context
// ProcessInterrupts is called from.
type Logger = logrus.FieldLogger

// defaultLogger discards everything unless a caller opts in with
// SetLogger, matching can2040's original behavior of having no
// logging at all absent explicit instrumentation.
var defaultLogger Logger = func() Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// SetLogger installs the logger used by a Controller's subsequent log
// output. Call it before Setup.
func (c *Controller) SetLogger(log Logger) {
	c.log = log
}

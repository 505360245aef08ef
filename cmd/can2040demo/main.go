// Command can2040demo wires a Controller to real PIO/DMA hardware and
// bridges it to the console: every received frame is logged, and a
// counter frame is transmitted once a second. It is the bring-up
// sanity check for a new board, in the spirit of
// tinygo-org/pio/rp2-pio/examples/blinky.
package main

import (
	"device/rp"
	"machine"
	"time"

	"github.com/can2040/can2040"
	"github.com/can2040/can2040/canpio"
	"github.com/can2040/can2040/config"
	"github.com/can2040/can2040/pio"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load("can.ini")
	if err != nil {
		log.WithError(err).Fatal("can2040demo: loading config")
	}

	hw := rp.PIO0
	if cfg.PIOBlock == 1 {
		hw = rp.PIO1
	}
	p := pio.New(pio.NewRP2040Device(hw))

	driver, err := canpio.New(p, cfg.GPIORx, cfg.GPIOTx)
	if err != nil {
		log.WithError(err).Fatal("can2040demo: claiming state machines")
	}

	dmaChan := canpio.NewDMAChannel(&rp.DMA.CH[cfg.DMAChannel], cfg.DMAChannel)
	mailbox := canpio.NewMailbox(dmaChan, 64)

	bus := can2040.NewController(driver, mailbox)
	bus.SetLogger(log)
	bus.CallbackConfig(func(kind can2040.NotifyKind, msg can2040.Msg, errKind can2040.ErrorKind) {
		switch kind {
		case can2040.NotifyRX:
			log.WithFields(logrus.Fields{"id": msg.ID, "len": msg.Length}).Info("can2040demo: rx")
		case can2040.NotifyTX:
			log.WithField("id", msg.ID).Info("can2040demo: tx confirmed")
		case can2040.NotifyTXFail:
			log.WithField("id", msg.ID).Warn("can2040demo: tx failed")
		case can2040.NotifyError:
			log.WithField("reason", errKind).Warn("can2040demo: bus error")
		}
	})

	if err := bus.Start(cfg.SysClockHz, cfg.BitrateHz); err != nil {
		log.WithError(err).Fatal("can2040demo: starting controller")
	}

	machine.GPIO0.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	counter := byte(0)
	nextTx := time.Now()
	for {
		bus.ProcessInterrupts()
		if time.Now().After(nextTx) {
			if bus.CheckTransmit() {
				bus.Transmit(can2040.Msg{ID: 0x100, Length: 1, Data: [8]byte{counter}})
				counter++
			}
			nextTx = time.Now().Add(time.Second)
		}
	}
}

// Package config loads a CAN bus's hardware wiring and timing from an
// INI file, the way gocanopen loads its node configuration: plain
// sectioned key/value pairs rather than a bespoke format, parsed with
// gopkg.in/ini.v1.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// BusConfig describes one software CAN bus instance: which PIO block
// drives it, which DMA channel and IRQ line feed
// its receive mailbox, which GPIOs it uses, and its bit rate.
type BusConfig struct {
	PIOBlock   uint8  `ini:"pio_block"`
	DMAChannel uint8  `ini:"dma_channel"`
	DMAIRQLine uint8  `ini:"dma_irq_line"`
	GPIORx     uint8  `ini:"gpio_rx"`
	GPIOTx     uint8  `ini:"gpio_tx"`
	SysClockHz uint32 `ini:"sys_clock_hz"`
	BitrateHz  uint32 `ini:"bitrate_hz"`
}

// defaults matches the values a typical RP2040 board uses when
// nothing more specific is configured: PIO0, DMA channel 0, system
// clock at its default 125MHz, and the common 500kbit/s CAN bitrate.
func defaults() BusConfig {
	return BusConfig{
		PIOBlock:   0,
		DMAChannel: 0,
		DMAIRQLine: 0,
		SysClockHz: 125_000_000,
		BitrateHz:  500_000,
	}
}

// Load reads a BusConfig from the "can" section of an INI file at path.
func Load(path string) (BusConfig, error) {
	cfg := defaults()
	f, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := f.Section("can").MapTo(&cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks a BusConfig's fields are within range for a real
// RP2040-class PIO/DMA subsystem.
func (c BusConfig) Validate() error {
	if c.PIOBlock > 1 {
		return fmt.Errorf("config: pio_block %d out of range (0-1)", c.PIOBlock)
	}
	if c.DMAChannel > 11 {
		return fmt.Errorf("config: dma_channel %d out of range (0-11)", c.DMAChannel)
	}
	if c.GPIORx == c.GPIOTx {
		return fmt.Errorf("config: gpio_rx and gpio_tx must differ (both %d)", c.GPIORx)
	}
	if c.BitrateHz == 0 || c.BitrateHz > 1_000_000 {
		return fmt.Errorf("config: bitrate_hz %d out of range (1-1000000)", c.BitrateHz)
	}
	if c.SysClockHz < c.BitrateHz*16 {
		return fmt.Errorf("config: sys_clock_hz %d too low for bitrate_hz %d (need 16x oversampling)", c.SysClockHz, c.BitrateHz)
	}
	return nil
}

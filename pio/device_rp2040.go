//go:build rp2040

package pio

import "device/rp"

// rp2040Device implements Device against a real PIO block's
// memory-mapped registers, the way tinygo-org/pio/rp2-pio's
// pio_rp2040.go/statemachine_rp2040.go pair does for its own API.
// Register bit-packing here mirrors rp2-pio/config.go's
// StateMachineConfig methods, applied to this package's semantic
// StateMachineConfig instead of a pre-packed one.
type rp2040Device struct {
	hw *rp.PIO0_Type
}

// NewRP2040Device wraps rp.PIO0 or rp.PIO1 as a Device.
func NewRP2040Device(hw *rp.PIO0_Type) Device {
	return &rp2040Device{hw: hw}
}

func (d *rp2040Device) WriteInstrMem(offset uint8, instr uint16) {
	d.hw.INSTR_MEM[offset].Set(uint32(instr))
}

func (d *rp2040Device) SetSMConfig(index uint8, cfg StateMachineConfig) {
	sm := &d.hw.SM[index]
	sm.CLKDIV.Set(uint32(cfg.ClkDivWhole)<<16 | uint32(cfg.ClkDivFrac)<<8)

	execctrl := uint32(cfg.WrapBottom)<<7 | uint32(cfg.WrapTop)<<12 | uint32(cfg.JmpPin)<<24
	if cfg.SidesetOptional {
		execctrl |= 1 << 30
	}
	if cfg.SidesetPindirs {
		execctrl |= 1 << 29
	}
	sm.EXECCTRL.Set(execctrl)

	shiftctrl := uint32(cfg.PushThreshold)<<20 | uint32(cfg.PullThreshold)<<25
	if cfg.InShiftRight {
		shiftctrl |= 1 << 18
	}
	if cfg.OutShiftRight {
		shiftctrl |= 1 << 19
	}
	if cfg.InAutoPush {
		shiftctrl |= 1 << 16
	}
	if cfg.OutAutoPull {
		shiftctrl |= 1 << 17
	}
	switch cfg.FIFOJoin {
	case FifoJoinTx:
		shiftctrl |= 1 << 30
	case FifoJoinRx:
		shiftctrl |= 1 << 31
	}
	sm.SHIFTCTRL.Set(shiftctrl)

	pinctrl := uint32(cfg.OutBase) | uint32(cfg.SetBase)<<5 | uint32(cfg.SidesetBase)<<10 |
		uint32(cfg.InBase)<<15 | uint32(cfg.OutCount)<<20 | uint32(cfg.SetCount)<<26 |
		uint32(cfg.SidesetBits)<<29
	sm.PINCTRL.Set(pinctrl)
}

func (d *rp2040Device) SetSMEnabled(mask uint8, enabled bool) {
	if enabled {
		d.hw.CTRL.SetBits(uint32(mask))
	} else {
		d.hw.CTRL.ClearBits(uint32(mask))
	}
}

func (d *rp2040Device) RestartSM(mask uint8) {
	d.hw.CTRL.SetBits(uint32(mask) << 4)
}

func (d *rp2040Device) RestartClkDiv(mask uint8) {
	d.hw.CTRL.SetBits(uint32(mask) << 8)
}

func (d *rp2040Device) ExecInstr(index uint8, instr uint16) {
	d.hw.SM[index].INSTR.Set(uint32(instr))
}

func (d *rp2040Device) TxPut(index uint8, data uint32) {
	d.hw.TXF[index].Set(data)
}

func (d *rp2040Device) RxGet(index uint8) uint32 {
	return d.hw.RXF[index].Get()
}

func (d *rp2040Device) IsTxFIFOFull(index uint8) bool {
	return d.hw.FSTAT.Get()&(1<<(16+index)) != 0
}

func (d *rp2040Device) IsTxFIFOEmpty(index uint8) bool {
	return d.hw.FSTAT.Get()&(1<<(24+index)) != 0
}

func (d *rp2040Device) IsRxFIFOEmpty(index uint8) bool {
	return d.hw.FSTAT.Get()&(1<<(8+index)) != 0
}

func (d *rp2040Device) ClearFIFOs(index uint8) {
	sm := &d.hw.SM[index]
	shiftctrl := sm.SHIFTCTRL.Get()
	sm.SHIFTCTRL.Set(shiftctrl ^ (1 << 31))
	sm.SHIFTCTRL.Set(shiftctrl)
}

// SetPinsMasked and SetPindirsMasked are only used at setup time,
// before a state machine runs free, so — like pico-sdk's
// pio_sm_set_pins_with_mask — they drive pins by temporarily
// executing SET instructions on state machine 0 rather than poking a
// GPIO register directly, keeping pin numbering consistent with
// whatever SET base/count that state machine is configured with.
func (d *rp2040Device) SetPinsMasked(valueMask, pinMask uint32) {
	d.execSetMasked(valueMask, pinMask, EncodeSet(SrcDestPins, 0))
}

func (d *rp2040Device) SetPindirsMasked(dirMask, pinMask uint32) {
	d.execSetMasked(dirMask, pinMask, EncodeSet(SrcDestPinDirs, 0))
}

func (d *rp2040Device) execSetMasked(valueMask, pinMask uint32, baseInstr uint16) {
	for shift := uint32(0); shift < 32; shift++ {
		if pinMask&(1<<shift) == 0 {
			continue
		}
		bit := (valueMask >> shift) & 1
		d.ExecInstr(0, baseInstr|uint16(bit))
	}
}

func (d *rp2040Device) GetIRQ() uint8 {
	return uint8(d.hw.IRQ.Get())
}

func (d *rp2040Device) ClearIRQ(mask uint8) {
	d.hw.IRQ.Set(uint32(mask))
}

func (d *rp2040Device) SetIRQEnabled(mask uint8, enabled bool) {
	if enabled {
		d.hw.INTE0.SetBits(uint32(mask) << 8)
	} else {
		d.hw.INTE0.ClearBits(uint32(mask) << 8)
	}
}

func (d *rp2040Device) RxStalled(index uint8) bool {
	return d.hw.FDEBUG.Get()&(1<<(0+index)) != 0
}

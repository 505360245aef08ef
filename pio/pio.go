package pio

import "errors"

// PIO errors.
var (
	ErrOutOfProgramSpace = errors.New("pio: out of program space")
	ErrNoSpaceAtOffset   = errors.New("pio: program space unavailable at offset")
	ErrAllSMClaimed      = errors.New("pio: all state machines claimed")
)

const (
	badStateMachineIndex = "pio: invalid state machine index"
	badProgramBounds     = "pio: invalid program bounds"
)

// Device is the hardware contract a PIO block is driven through. It
// is the one seam between the protocol-level driver logic in this
// repository (in scope) and the host MCU's memory-mapped PIO register
// block, clock/reset plumbing and GPIO mux (out of scope — board
// bring-up is someone else's problem, described only by this
// interface). A real Device is built per target MCU behind a build
// tag; tests use a software Device that never touches hardware.
type Device interface {
	// WriteInstrMem loads one instruction word at the given program
	// memory offset (0..31).
	WriteInstrMem(offset uint8, instr uint16)
	// SetSMConfig applies a state machine's configuration registers.
	SetSMConfig(index uint8, cfg StateMachineConfig)
	// SetSMEnabled starts or stops the state machines selected by mask.
	SetSMEnabled(mask uint8, enabled bool)
	// RestartSM resets the selected state machines' program counter
	// and internal state (but not their configuration).
	RestartSM(mask uint8)
	// RestartClkDiv resets the selected state machines' clock dividers
	// to a known phase.
	RestartClkDiv(mask uint8)
	// ExecInstr immediately executes one instruction on a state machine.
	ExecInstr(index uint8, instr uint16)
	// TxPut pushes one word into a state machine's TX FIFO.
	TxPut(index uint8, data uint32)
	// RxGet pops one word from a state machine's RX FIFO.
	RxGet(index uint8) uint32
	IsTxFIFOFull(index uint8) bool
	IsTxFIFOEmpty(index uint8) bool
	IsRxFIFOEmpty(index uint8) bool
	// ClearFIFOs flushes both FIFOs of a state machine.
	ClearFIFOs(index uint8)
	// SetPinsMasked drives the given pin values through the state
	// machine's instruction-injection path (used only at setup, before
	// the state machine runs free).
	SetPinsMasked(valueMask, pinMask uint32)
	SetPindirsMasked(dirMask, pinMask uint32)
	// GetIRQ returns the low byte of PIO-level IRQ flags.
	GetIRQ() uint8
	ClearIRQ(mask uint8)
	// SetIRQEnabled controls whether the selected PIO-level IRQ flags
	// are forwarded to the host interrupt controller at all, as
	// opposed to GetIRQ/ClearIRQ which read and latch-clear the raw
	// flags regardless of forwarding.
	SetIRQEnabled(mask uint8, enabled bool)
	// RxStalled reports the PIO debug RXn-stall flag for a state
	// machine: the CPU (or DMA) failed to keep up with arriving data.
	RxStalled(index uint8) bool
}

// PIO represents one PIO block (four state machines sharing one
// 32-instruction program memory).
type PIO struct {
	dev Device

	// usedSpaceMask is a bitmask of program memory slots in use.
	usedSpaceMask uint32
	// claimedSMMask is a bitmask of claimed state machines.
	claimedSMMask uint8
}

// New wraps a Device as a PIO block.
func New(dev Device) *PIO {
	return &PIO{dev: dev}
}

// StateMachine returns a handle for a state machine by index (0..3).
func (p *PIO) StateMachine(index uint8) StateMachine {
	if index > 3 {
		panic(badStateMachineIndex)
	}
	return StateMachine{pio: p, index: index}
}

// ClaimStateMachine returns the first unclaimed state machine.
func (p *PIO) ClaimStateMachine() (StateMachine, error) {
	for i := uint8(0); i < 4; i++ {
		sm := p.StateMachine(i)
		if sm.Claim() {
			return sm, nil
		}
	}
	return StateMachine{}, ErrAllSMClaimed
}

// AddProgram loads a program into the first available program memory
// slot (searching from the top down) and returns its offset. origin
// is the required offset, or -1 if the program is position
// independent (its JMP targets are relocated by the load offset). The
// canpio program is not loaded this way: its driver also uses absolute
// offsets outside the program, so it is always loaded at offset 0.
func (p *PIO) AddProgram(instructions []uint16, origin int8) (offset uint8, err error) {
	off := p.findOffsetForProgram(instructions, origin)
	if off < 0 {
		return 0, ErrOutOfProgramSpace
	}
	offset = uint8(off)
	return offset, p.AddProgramAtOffset(instructions, origin, offset)
}

// AddProgramAtOffset loads a program at a specific offset.
func (p *PIO) AddProgramAtOffset(instructions []uint16, origin int8, offset uint8) error {
	if !p.CanAddProgramAtOffset(instructions, origin, offset) {
		return ErrNoSpaceAtOffset
	}
	for i, instr := range instructions {
		// Relocate JMP targets by the load offset, matching pico-sdk's
		// pio_add_program behavior for position-independent programs.
		if majorInstrBits(instr) == _INSTR_BITS_JMP {
			instr += uint16(offset)
		}
		p.dev.WriteInstrMem(offset+uint8(i), instr)
	}
	programMask := uint32(1)<<uint32(len(instructions)) - 1
	p.usedSpaceMask |= programMask << uint32(offset)
	return nil
}

// CanAddProgramAtOffset reports whether a program fits at offset.
func (p *PIO) CanAddProgramAtOffset(instructions []uint16, origin int8, offset uint8) bool {
	if origin >= 0 && origin != int8(offset) {
		return false
	}
	programMask := uint32(1)<<uint32(len(instructions)) - 1
	return p.usedSpaceMask&(programMask<<offset) == 0
}

func (p *PIO) findOffsetForProgram(instructions []uint16, origin int8) int8 {
	programLen := uint32(len(instructions))
	programMask := uint32(1)<<programLen - 1
	if origin >= 0 {
		if uint32(origin) > 32-programLen {
			return -1
		}
		if p.usedSpaceMask&(programMask<<uint32(origin)) != 0 {
			return -1
		}
		return origin
	}
	for i := int8(32 - programLen); i >= 0; i-- {
		if p.usedSpaceMask&(programMask<<uint32(i)) == 0 {
			return i
		}
	}
	return -1
}

// ClearProgramSection clears a contiguous range of program memory,
// filling it with trap instructions so a state machine still mid-flight
// on the old program cannot run off into newly-loaded code.
func (p *PIO) ClearProgramSection(offset, length uint8) {
	if uint16(offset)+uint16(length) > 32 {
		panic(badProgramBounds)
	}
	for i := offset; i < offset+length; i++ {
		p.dev.WriteInstrMem(i, encodeTrap(offset))
	}
	p.usedSpaceMask &^= (uint32(1)<<uint32(length) - 1) << uint32(offset)
}

// EnableMask starts or stops a set of state machines atomically
// (selected by bit index), the way a single write to the PIO block's
// CTRL register does on real hardware.
func (p *PIO) EnableMask(mask uint8, enabled bool) { p.dev.SetSMEnabled(mask, enabled) }

// RestartMask resets the internal state of a set of state machines.
func (p *PIO) RestartMask(mask uint8) { p.dev.RestartSM(mask) }

// RestartClkDivMask restarts the clock dividers of a set of state
// machines at a synchronized phase.
func (p *PIO) RestartClkDivMask(mask uint8) { p.dev.RestartClkDiv(mask) }

// GetIRQ returns the low byte of PIO-level IRQ flags.
func (p *PIO) GetIRQ() uint8 { return p.dev.GetIRQ() }

// ClearIRQ clears the selected IRQ flags.
func (p *PIO) ClearIRQ(mask uint8) { p.dev.ClearIRQ(mask) }

// SetIRQEnabled arms or disarms forwarding of the selected IRQ flags.
func (p *PIO) SetIRQEnabled(mask uint8, enabled bool) { p.dev.SetIRQEnabled(mask, enabled) }

// StateMachine is a handle to one of a PIO block's four state machines.
type StateMachine struct {
	pio   *PIO
	index uint8
}

// PIO returns the parent PIO block.
func (sm StateMachine) PIO() *PIO { return sm.pio }

// Index returns the state machine's index within its PIO block (0..3).
func (sm StateMachine) Index() uint8 { return sm.index }

// IsClaimed reports whether the state machine is claimed.
func (sm StateMachine) IsClaimed() bool {
	return sm.pio.claimedSMMask&(1<<sm.index) != 0
}

// Claim claims the state machine for exclusive use, returning false if
// it was already claimed.
func (sm StateMachine) Claim() bool {
	if sm.IsClaimed() {
		return false
	}
	sm.pio.claimedSMMask |= 1 << sm.index
	return true
}

// Unclaim releases the state machine.
func (sm StateMachine) Unclaim() {
	sm.pio.claimedSMMask &^= 1 << sm.index
}

// Init halts the state machine, applies cfg, clears its FIFOs and
// debug flags, and jumps to initialPC.
func (sm StateMachine) Init(initialPC uint8, cfg StateMachineConfig) {
	sm.SetEnabled(false)
	sm.SetConfig(cfg)
	sm.ClearFIFOs()
	sm.Restart()
	sm.ClkDivRestart()
	sm.Exec(EncodeJmp(initialPC, JmpAlways))
}

// SetEnabled starts or stops the state machine.
func (sm StateMachine) SetEnabled(enabled bool) {
	sm.pio.dev.SetSMEnabled(1<<sm.index, enabled)
}

// Restart resets the state machine's internal state.
func (sm StateMachine) Restart() { sm.pio.dev.RestartSM(1 << sm.index) }

// ClkDivRestart restarts the state machine's clock divider at phase 0.
func (sm StateMachine) ClkDivRestart() { sm.pio.dev.RestartClkDiv(1 << sm.index) }

// SetConfig applies cfg to the state machine's configuration registers.
func (sm StateMachine) SetConfig(cfg StateMachineConfig) { sm.pio.dev.SetSMConfig(sm.index, cfg) }

// Exec immediately executes instr on the state machine.
func (sm StateMachine) Exec(instr uint16) { sm.pio.dev.ExecInstr(sm.index, instr) }

// TxPut pushes data into the state machine's TX FIFO, without checking
// for fullness.
func (sm StateMachine) TxPut(data uint32) { sm.pio.dev.TxPut(sm.index, data) }

// RxGet pops one word from the state machine's RX FIFO, without
// checking for emptiness.
func (sm StateMachine) RxGet() uint32 { return sm.pio.dev.RxGet(sm.index) }

func (sm StateMachine) IsTxFIFOFull() bool  { return sm.pio.dev.IsTxFIFOFull(sm.index) }
func (sm StateMachine) IsTxFIFOEmpty() bool { return sm.pio.dev.IsTxFIFOEmpty(sm.index) }
func (sm StateMachine) IsRxFIFOEmpty() bool { return sm.pio.dev.IsRxFIFOEmpty(sm.index) }

// ClearFIFOs flushes the state machine's TX and RX FIFOs.
func (sm StateMachine) ClearFIFOs() { sm.pio.dev.ClearFIFOs(sm.index) }

// RxStalled reports the state machine's RX-stall debug flag: whether
// the RX FIFO has overflowed, i.e. the CPU/DMA fell behind the
// incoming bit stream. Reading it does not clear the flag.
func (sm StateMachine) RxStalled() bool { return sm.pio.dev.RxStalled(sm.index) }

// SetPindirsConsecutive sets count pins starting at base to input or output.
func (sm StateMachine) SetPindirsConsecutive(base uint8, count uint8, isOut bool) {
	valueMask, pinMask := makePinmask(base, count, boolAsU8(isOut))
	sm.pio.dev.SetPindirsMasked(valueMask, pinMask)
}

// SetPinsConsecutive sets count pins starting at base to an initial level.
func (sm StateMachine) SetPinsConsecutive(base uint8, count uint8, level bool) {
	valueMask, pinMask := makePinmask(base, count, boolAsU8(level))
	sm.pio.dev.SetPinsMasked(valueMask, pinMask)
}

func makePinmask(base, count, bit uint8) (valueMask, pinMask uint32) {
	for shift := base; shift < base+count; shift++ {
		valueMask |= uint32(bit) << shift
		pinMask |= 1 << shift
	}
	return valueMask, pinMask
}

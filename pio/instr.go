// Package pio provides a small PIO (programmable I/O) assembler and a
// hardware-independent state machine configuration and driving API,
// in the style of github.com/tinygo-org/pio/rp2-pio.
package pio

import (
	"errors"
	"math"
)

// 5 bits of delay/sideset.
const delaySidesetbits = 0b1_1111 << 8

// Assembler provides a fluent API for building PIO instruction words
// in Go, the way pioasm would from a .pio source file. Programs are
// built as ordinary Go slices of instruction words rather than parsed
// from assembly text, which lets a program be treated as a constant
// data table.
type Assembler struct {
	SidesetBits uint8
}

type instruction struct {
	instr uint16
	asm   Assembler
}

// Encode returns the raw 16-bit instruction word.
func (instr instruction) Encode() uint16 {
	return instr.instr
}

// Side attaches a side-set value to the instruction.
func (instr instruction) Side(value uint8) instruction {
	instr.instr &^= instr.asm.sidesetbits()
	instr.instr |= EncodeSideSet(instr.asm.SidesetBits, value)
	return instr
}

// Delay attaches a post-instruction delay, in cycles.
func (instr instruction) Delay(cycles uint8) instruction {
	instr.instr &^= instr.asm.delaybits()
	instr.instr |= EncodeDelay(cycles)
	return instr
}

func (asm Assembler) sidesetbits() uint16 {
	return delaySidesetbits & (uint16(0b111) << (13 - asm.SidesetBits))
}

func (asm Assembler) delaybits() uint16 {
	return delaySidesetbits & (0b11111 << (8 - asm.SidesetBits))
}

func (asm Assembler) instr(instr uint16) instruction {
	return instruction{instr: instr, asm: asm}
}

func (asm Assembler) Out(dest SrcDest, value uint8) instruction {
	return asm.instr(EncodeOut(dest, value))
}

func (asm Assembler) Nop() instruction {
	return asm.instr(EncodeNOP())
}

func (asm Assembler) Jmp(addr uint8, cond JmpCond) instruction {
	return asm.instr(EncodeJmp(addr, cond))
}

func (asm Assembler) In(src SrcDest, value uint8) instruction {
	return asm.instr(EncodeIn(src, value))
}

func (asm Assembler) Wait(polarity bool, src WaitSrc, index uint8) instruction {
	return asm.instr(EncodeWait(polarity, src, index))
}

func (asm Assembler) WaitIRQ(polarity, relative bool, irq uint8) instruction {
	return asm.instr(EncodeWaitIRQ(polarity, relative, irq))
}

func (asm Assembler) Pull(ifEmpty, block bool) instruction {
	return asm.instr(EncodePull(ifEmpty, block))
}

func (asm Assembler) Push(ifFull, block bool) instruction {
	return asm.instr(EncodePush(ifFull, block))
}

func (asm Assembler) Mov(dest, src SrcDest) instruction {
	return asm.instr(EncodeMov(dest, src))
}

func (asm Assembler) Set(dest SrcDest, value uint8) instruction {
	return asm.instr(EncodeSet(dest, value))
}

func (asm Assembler) IRQSet(relative bool, irq uint8) instruction {
	return asm.instr(EncodeIRQSet(relative, irq))
}

func (asm Assembler) IRQWait(relative bool, irq uint8) instruction {
	return asm.instr(EncodeIRQWait(relative, irq))
}

func (asm Assembler) IRQClear(relative bool, irq uint8) instruction {
	return asm.instr(EncodeIRQClear(relative, irq))
}

// InstrKind is an enum for the PIO instruction type. It only represents
// the kind of instruction, not its arguments.
type InstrKind uint8

const (
	InstrJMP InstrKind = iota
	InstrWAIT
	InstrIN
	InstrOUT
	InstrPUSH
	InstrPULL
	InstrMOV
	InstrIRQ
	InstrSET
)

const (
	_INSTR_BITS_JMP  = 0x0000
	_INSTR_BITS_WAIT = 0x2000
	_INSTR_BITS_IN   = 0x4000
	_INSTR_BITS_OUT  = 0x6000
	_INSTR_BITS_PUSH = 0x8000
	_INSTR_BITS_PULL = 0x8080
	_INSTR_BITS_MOV  = 0xa000
	_INSTR_BITS_IRQ  = 0xc000
	_INSTR_BITS_SET  = 0xe000

	_INSTR_BITS_Msk = 0xe000
)

// SrcDest enumerates the source/destination operand selectors shared
// by IN, OUT, MOV and SET instructions.
type SrcDest uint8

const (
	SrcDestPins    SrcDest = 0
	SrcDestX       SrcDest = 1
	SrcDestY       SrcDest = 2
	SrcDestNull    SrcDest = 3
	SrcDestPinDirs SrcDest = 4
	SrcDestExecMov SrcDest = 4
	SrcDestStatus  SrcDest = 5
	SrcDestPC      SrcDest = 5
	SrcDestISR     SrcDest = 6
	SrcDestOSR     SrcDest = 7
	SrcExecOut     SrcDest = 7
)

// WaitSrc selects what a WAIT instruction waits on.
type WaitSrc uint8

const (
	WaitSrcGPIO WaitSrc = 0
	WaitSrcPin  WaitSrc = 1
	WaitSrcIRQ  WaitSrc = 2
)

// JmpCond enumerates JMP condition codes.
type JmpCond uint8

const (
	// JmpAlways jumps unconditionally.
	JmpAlways JmpCond = iota
	// JmpXZero jumps if X is zero.
	JmpXZero
	// JmpXNZeroDec jumps if X is not zero, prior to decrementing X.
	JmpXNZeroDec
	// JmpYZero jumps if Y is zero.
	JmpYZero
	// JmpYNZeroDec jumps if Y is not zero, prior to decrementing Y.
	JmpYNZeroDec
	// JmpXNotEqualY jumps if X != Y.
	JmpXNotEqualY
	// JmpPinInput jumps if the EXECCTRL-configured jump pin is high.
	JmpPinInput
	// JmpOSRNotEmpty jumps if the OSR has not reached the pull threshold.
	JmpOSRNotEmpty
)

func majorInstrBits(instr uint16) uint16 {
	return instr & _INSTR_BITS_Msk
}

func encodeInstrAndArgs(instr uint16, arg1 uint8, arg2 uint8) uint16 {
	return instr | (uint16(arg1) << 5) | uint16(arg2&0x1f)
}

func encodeInstrAndSrcDest(instr uint16, dest SrcDest, value uint8) uint16 {
	return encodeInstrAndArgs(instr, uint8(dest)&7, value)
}

func EncodeDelay(cycles uint8) uint16 {
	return uint16(0b11111&cycles) << 8
}

func EncodeSideSet(bitCount, value uint8) uint16 {
	return uint16(value) << (13 - bitCount)
}

func EncodeJmp(addr uint8, condition JmpCond) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_JMP, uint8(condition&0b111), addr)
}

func encodeIRQArg(relative bool, irq uint8) uint8 {
	return boolAsU8(relative)<<4 | (irq & 0x7)
}

// EncodeWait encodes a WAIT instruction against a GPIO, a mapped pin, or an IRQ flag.
func EncodeWait(polarity bool, src WaitSrc, index uint8) uint16 {
	flag := boolAsU8(polarity) << 2
	return encodeInstrAndArgs(_INSTR_BITS_WAIT, uint8(src)|flag, index)
}

func EncodeWaitIRQ(polarity bool, relative bool, irq uint8) uint16 {
	flag := boolAsU8(polarity) << 2
	return encodeInstrAndArgs(_INSTR_BITS_WAIT, uint8(WaitSrcIRQ)|flag, encodeIRQArg(relative, irq))
}

func EncodeIn(src SrcDest, value uint8) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_IN, src, value)
}

func EncodeOut(dest SrcDest, value uint8) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_OUT, dest, value)
}

func EncodePush(ifFull bool, block bool) uint16 {
	arg := boolAsU8(ifFull)<<1 | boolAsU8(block)
	return encodeInstrAndArgs(_INSTR_BITS_PUSH, arg, 0)
}

func EncodePull(ifEmpty bool, block bool) uint16 {
	arg := boolAsU8(ifEmpty)<<1 | boolAsU8(block)
	return encodeInstrAndArgs(_INSTR_BITS_PULL, arg, 0)
}

func EncodeMov(dest SrcDest, src SrcDest) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_MOV, dest, uint8(src)&7)
}

func EncodeIRQSet(relative bool, irq uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_IRQ, 0, encodeIRQArg(relative, irq))
}

func EncodeIRQWait(relative bool, irq uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_IRQ, 1, encodeIRQArg(relative, irq))
}

func EncodeIRQClear(relative bool, irq uint8) uint16 {
	return encodeInstrAndArgs(_INSTR_BITS_IRQ, 2, encodeIRQArg(relative, irq))
}

func EncodeSet(dest SrcDest, value uint8) uint16 {
	return encodeInstrAndSrcDest(_INSTR_BITS_SET, dest, value)
}

func EncodeNOP() uint16 {
	return EncodeMov(SrcDestY, SrcDestY)
}

// encodeTrap encodes a trap instruction: an infinite self-jump used to
// fill program memory that might still be executing when reclaimed.
func encodeTrap(trapOffset uint8) uint16 {
	return EncodeJmp(trapOffset, JmpAlways)
}

// ClkDivFromFrequency calculates the whole/fractional clock divider to
// reach a given state machine cycle frequency, given the system clock
// frequency. Both are in Hz.
func ClkDivFromFrequency(freq, cpuFreq uint32) (whole uint16, frac uint8, err error) {
	return splitClkdiv(256 * uint64(cpuFreq) / uint64(freq))
}

func splitClkdiv(clkdiv uint64) (whole uint16, frac uint8, err error) {
	if clkdiv > 256*math.MaxUint16 {
		return 0, 0, errors.New("pio: clkdiv out of range (frequency too low)")
	} else if clkdiv < 256 {
		return 0, 0, errors.New("pio: clkdiv out of range (frequency too high)")
	}
	whole = uint16(clkdiv / 256)
	frac = uint8(clkdiv % 256)
	return whole, frac, nil
}

func boolAsU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

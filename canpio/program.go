// Package canpio holds the shared PIO program that realizes a CAN 2.0B
// bus in four cooperating state machines (sync, rx, ack, tx), and the
// Driver that loads and drives it through a pio.PIO block.
package canpio

import "github.com/can2040/can2040/pio"

// Program memory offsets within the shared 32-word program. These are
// jump targets baked into the program itself (sync_entry, shared_rx_read,
// ack_no_match, tx_start) and into each state machine's wrap range
// (sync_end, shared_rx_end, ack_end) at setup time; the program is not
// relocatable and is always loaded at offset 0.
const (
	OffsetSyncSignalStart uint8 = 4
	OffsetSyncEntry       uint8 = 6
	OffsetSyncEnd         uint8 = 13
	OffsetSharedRxRead    uint8 = 13
	OffsetSharedRxEnd     uint8 = 15
	OffsetAckNoMatch      uint8 = 18
	OffsetAckEnd          uint8 = 25
	OffsetTxStart         uint8 = 26
)

// Program builds the 32-instruction shared program. It is built with the
// pio Assembler, instruction by instruction, rather than carried as an
// opaque hex blob, so the encoding is checked against the PIO ISA by
// TestProgramEncoding alongside the rest of this package's assembler coverage.
func Program() []uint16 {
	var asm pio.Assembler
	return []uint16{
		asm.Jmp(5, pio.JmpYNZeroDec).Encode(),        //  0: jmp y--, 5
		asm.Jmp(8, pio.JmpXNZeroDec).Encode(),        //  1: jmp x--, 8
		asm.Set(pio.SrcDestX, 28).Encode(),           //  2: set x, 28
		asm.Jmp(12, pio.JmpPinInput).Encode(),        //  3: jmp pin, 12
		asm.IRQSet(false, 0).Encode(),                //  4: irq nowait 0
		asm.Jmp(0, pio.JmpPinInput).Encode(),         //  5: jmp pin, 0
		asm.IRQClear(false, 0).Encode(),              //  6: irq clear 0
		asm.Set(pio.SrcDestX, 8).Delay(2).Encode(),   //  7: set x, 8 [2]
		asm.Set(pio.SrcDestY, 2).Delay(2).Encode(),   //  8: set y, 2 [2]
		asm.IRQSet(false, 4).Delay(1).Encode(),       //  9: irq nowait 4 [1]
		asm.Jmp(5, pio.JmpPinInput).Delay(3).Encode(), // 10: jmp pin, 5 [3]
		asm.Jmp(7, pio.JmpAlways).Delay(3).Encode(),   // 11: jmp 7 [3]
		asm.Jmp(3, pio.JmpXNZeroDec).Encode(),         // 12: jmp x--, 3
		asm.WaitIRQ(true, false, 4).Encode(),          // 13: wait 1 irq, 4
		asm.In(pio.SrcDestPins, 1).Encode(),           // 14: in pins, 1
		asm.Mov(pio.SrcDestY, pio.SrcDestISR).Encode(), // 15: mov y, isr
		asm.Jmp(OffsetAckNoMatch, pio.JmpXNotEqualY).Encode(), // 16: jmp x != y, ack_no_match
		asm.IRQSet(false, 2).Encode(),                  // 17: irq nowait 2
		asm.In(pio.SrcDestOSR, 11).Encode(),             // 18: in osr, 11   (ack_no_match)
		asm.In(pio.SrcDestY, 20).Encode(),               // 19: in y, 20
		asm.Mov(pio.SrcDestY, pio.SrcDestOSR).Encode(),  // 20: mov y, osr
		asm.Pull(false, false).Encode(),                 // 21: pull noblock
		asm.Mov(pio.SrcDestX, pio.SrcDestOSR).Encode(),  // 22: mov x, osr
		asm.Jmp(24, pio.JmpYNZeroDec).Encode(),          // 23: jmp y--, 24
		asm.Mov(pio.SrcDestOSR, pio.SrcDestY).Encode(),  // 24: mov osr, y
		asm.Nop().Delay(2).Encode(),                      // 25: nop [2]   (ack_end)
		asm.Out(pio.SrcDestX, 1).Encode(),                // 26: out x, 1  (tx_start)
		asm.Mov(pio.SrcDestPins, pio.SrcDestX).Encode(),  // 27: mov pins, x
		asm.WaitIRQ(true, false, 4).Encode(),             // 28: wait 1 irq, 4
		asm.Jmp(25, pio.JmpPinInput).Encode(),            // 29: jmp pin, 25
		asm.Jmp(OffsetTxStart, pio.JmpXZero).Delay(2).Encode(), // 30: jmp !x, tx_start [2]
		asm.IRQWait(false, 3).Encode(),                   // 31: irq wait 3
	}
}

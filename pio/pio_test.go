package pio

import "testing"

func TestAssemblerEncoding(t *testing.T) {
	var asm Assembler
	cases := []struct {
		name string
		got  uint16
		want uint16
	}{
		{"jmp always 5", asm.Jmp(5, JmpAlways).Encode(), 0x0005},
		{"jmp x-- 8", asm.Jmp(8, JmpXNZeroDec).Encode(), 0x0048},
		{"set x,28 delay2", asm.Set(SrcDestX, 28).Delay(2).Encode(), 0xe23c},
		{"jmp pin 12", asm.Jmp(12, JmpPinInput).Encode(), 0x00cc},
		{"irq nowait 0", asm.IRQSet(false, 0).Encode(), 0xc000},
		{"wait 1 irq 4", asm.WaitIRQ(true, false, 4).Encode(), 0x20c4},
		{"in pins,1", asm.In(SrcDestPins, 1).Encode(), 0x4001},
		{"mov y,isr", asm.Mov(SrcDestY, SrcDestISR).Encode(), 0xa046},
		{"pull noblock", asm.Pull(false, false).Encode(), 0x8080},
		{"out x,1", asm.Out(SrcDestX, 1).Encode(), 0x6021},
		{"mov pins,x", asm.Mov(SrcDestPins, SrcDestX).Encode(), 0xa001},
		{"irq wait 3", asm.IRQWait(false, 3).Encode(), 0xc023},
		{"nop", asm.Nop().Encode(), 0xa042},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("%s: got %#04x want %#04x", c.name, c.got, c.want)
		}
	}
}

func TestAssemblerSideset(t *testing.T) {
	asm := Assembler{SidesetBits: 1}
	got := asm.Out(SrcDestPins, 1).Side(0).Encode()
	if want := uint16(0x6001); got != want {
		t.Errorf("out pins,1 side 0: got %#04x want %#04x", got, want)
	}
	got = asm.Jmp(0, JmpXNZeroDec).Side(1).Encode()
	if want := uint16(0x1040); got != want {
		t.Errorf("jmp x--,0 side 1: got %#04x want %#04x", got, want)
	}
}

func TestClkDivFromFrequency(t *testing.T) {
	whole, frac, err := ClkDivFromFrequency(1_000_000, 125_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if whole != 125 || frac != 0 {
		t.Errorf("got whole=%d frac=%d, want 125/0", whole, frac)
	}
	if _, _, err := ClkDivFromFrequency(1, 125_000_000); err == nil {
		t.Error("expected error for frequency too low")
	}
}

type fakeDevice struct {
	mem       [32]uint16
	enabled   uint8
	restarted uint8
}

func (d *fakeDevice) WriteInstrMem(offset uint8, instr uint16) { d.mem[offset] = instr }
func (d *fakeDevice) SetSMConfig(index uint8, cfg StateMachineConfig) {}
func (d *fakeDevice) SetSMEnabled(mask uint8, enabled bool) {
	if enabled {
		d.enabled |= mask
	} else {
		d.enabled &^= mask
	}
}
func (d *fakeDevice) RestartSM(mask uint8)     { d.restarted |= mask }
func (d *fakeDevice) RestartClkDiv(mask uint8) {}
func (d *fakeDevice) ExecInstr(index uint8, instr uint16) {}
func (d *fakeDevice) TxPut(index uint8, data uint32)      {}
func (d *fakeDevice) RxGet(index uint8) uint32            { return 0 }
func (d *fakeDevice) IsTxFIFOFull(index uint8) bool       { return false }
func (d *fakeDevice) IsTxFIFOEmpty(index uint8) bool      { return true }
func (d *fakeDevice) IsRxFIFOEmpty(index uint8) bool      { return true }
func (d *fakeDevice) ClearFIFOs(index uint8)              {}
func (d *fakeDevice) SetPinsMasked(valueMask, pinMask uint32)    {}
func (d *fakeDevice) SetPindirsMasked(dirMask, pinMask uint32)   {}
func (d *fakeDevice) GetIRQ() uint8                       { return 0 }
func (d *fakeDevice) ClearIRQ(mask uint8)                 {}
func (d *fakeDevice) SetIRQEnabled(mask uint8, enabled bool) {}
func (d *fakeDevice) RxStalled(index uint8) bool          { return false }

func TestAddProgramPacksFromTop(t *testing.T) {
	p := New(&fakeDevice{})
	off1, err := p.AddProgram(make([]uint16, 10), -1)
	if err != nil {
		t.Fatal(err)
	}
	if off1 != 22 {
		t.Errorf("first program offset = %d, want 22 (packed from top)", off1)
	}
	off2, err := p.AddProgram(make([]uint16, 22), -1)
	if err != nil {
		t.Fatal(err)
	}
	if off2 != 0 {
		t.Errorf("second program offset = %d, want 0", off2)
	}
	if _, err := p.AddProgram(make([]uint16, 1), -1); err != ErrOutOfProgramSpace {
		t.Errorf("expected ErrOutOfProgramSpace, got %v", err)
	}
}

func TestClaimStateMachine(t *testing.T) {
	p := New(&fakeDevice{})
	for i := 0; i < 4; i++ {
		if _, err := p.ClaimStateMachine(); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}
	if _, err := p.ClaimStateMachine(); err != ErrAllSMClaimed {
		t.Errorf("expected ErrAllSMClaimed, got %v", err)
	}
}

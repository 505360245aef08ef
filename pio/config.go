package pio

// FifoJoin controls how a state machine's RX and TX FIFOs are joined.
type FifoJoin uint8

const (
	// FifoJoinNone keeps RX and TX FIFOs separate, 4 entries each.
	FifoJoinNone FifoJoin = iota
	// FifoJoinTx joins both FIFOs into a single 8-entry TX FIFO.
	FifoJoinTx
	// FifoJoinRx joins both FIFOs into a single 8-entry RX FIFO.
	FifoJoinRx
)

// StateMachineConfig holds the configuration for a PIO state machine,
// in the style of the pico-sdk's sm_config, but expressed as plain
// semantic fields rather than pre-packed hardware registers: the
// register bit layout is the host MCU's concern (see Device), not
// this package's.
type StateMachineConfig struct {
	WrapBottom uint8
	WrapTop    uint8

	InShiftRight  bool
	InAutoPush    bool
	PushThreshold uint16

	OutShiftRight bool
	OutAutoPull   bool
	PullThreshold uint16

	SidesetBits     uint8
	SidesetOptional bool
	SidesetPindirs  bool
	SidesetBase     uint8

	OutBase  uint8
	OutCount uint8

	SetBase  uint8
	SetCount uint8

	InBase uint8

	JmpPin uint8

	FIFOJoin FifoJoin

	ClkDivWhole uint16
	ClkDivFrac  uint8
}

// DefaultStateMachineConfig returns the default configuration for a
// PIO state machine: full wrap, no shift direction reversal, no
// autopush/autopull, unit clock divider.
func DefaultStateMachineConfig() StateMachineConfig {
	cfg := StateMachineConfig{}
	cfg.SetClkDivIntFrac(1, 0)
	cfg.SetWrap(0, 31)
	cfg.SetInShift(false, false, 32)
	cfg.SetOutShift(false, false, 32)
	return cfg
}

// SetClkDivIntFrac sets the clock divider from a whole and fractional
// part: Frequency = clock freq / (whole + frac/256).
func (cfg *StateMachineConfig) SetClkDivIntFrac(whole uint16, frac uint8) {
	cfg.ClkDivWhole, cfg.ClkDivFrac = whole, frac
}

// SetWrap sets the wrap bottom (target) and top (source) addresses.
func (cfg *StateMachineConfig) SetWrap(wrapTarget, wrap uint8) {
	cfg.WrapBottom, cfg.WrapTop = wrapTarget, wrap
}

// SetInShift configures the input shift register.
func (cfg *StateMachineConfig) SetInShift(shiftRight, autoPush bool, pushThreshold uint16) {
	cfg.InShiftRight, cfg.InAutoPush, cfg.PushThreshold = shiftRight, autoPush, pushThreshold&0x1f
}

// SetOutShift configures the output shift register.
func (cfg *StateMachineConfig) SetOutShift(shiftRight, autoPull bool, pullThreshold uint16) {
	cfg.OutShiftRight, cfg.OutAutoPull, cfg.PullThreshold = shiftRight, autoPull, pullThreshold&0x1f
}

// SetSidesetParams configures side-set bit stealing.
func (cfg *StateMachineConfig) SetSidesetParams(bitCount uint8, optional, pindirs bool) {
	if bitCount > 5 {
		panic("pio: SetSidesetParams bitCount")
	}
	cfg.SidesetBits, cfg.SidesetOptional, cfg.SidesetPindirs = bitCount, optional, pindirs
}

// SetSidesetPins sets the base pin affected by side-set operations.
func (cfg *StateMachineConfig) SetSidesetPins(base uint8) {
	cfg.SidesetBase = base
}

// SetOutPins sets the base pin and count affected by OUT/MOV PINS instructions.
func (cfg *StateMachineConfig) SetOutPins(base, count uint8) {
	cfg.OutBase, cfg.OutCount = base, count
}

// SetSetPins sets the base pin and count affected by SET instructions.
func (cfg *StateMachineConfig) SetSetPins(base, count uint8) {
	cfg.SetBase, cfg.SetCount = base, count
}

// SetInPins sets the base pin sampled by IN instructions.
func (cfg *StateMachineConfig) SetInPins(base uint8) {
	cfg.InBase = base
}

// SetJmpPin sets the GPIO used as the source for `jmp pin` instructions.
func (cfg *StateMachineConfig) SetJmpPin(pin uint8) {
	cfg.JmpPin = pin
}

// SetFIFOJoin configures FIFO joining.
func (cfg *StateMachineConfig) SetFIFOJoin(join FifoJoin) {
	if join > FifoJoinRx {
		panic("pio: SetFIFOJoin join")
	}
	cfg.FIFOJoin = join
}

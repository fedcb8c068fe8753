// Package trap implements the kernel's M→S privilege transition and trap
// classification: deciding what mcause/scause mean and what the handler
// must do about it (bump the return address past an ecall, re-arm the
// timer). The classification logic is portable and unit-tested on the
// host; only the CSR reads/writes themselves are architecture-specific,
// isolated behind the CSRs interface and the riscv64-only glue in
// csr_riscv64.go.
//
// Grounded on original_source/src/arch/riscv64/trap.rs (mtrap_handler,
// strap_handler) and src/arch/riscv64/cpu.rs (switch_to_s_level,
// trap_switch_to_s_level, the asm_wrap CSR accessors).
package trap

// InterruptFlag is the top bit RISC-V sets on mcause/scause to mark an
// interrupt rather than an exception.
const InterruptFlag = uint64(1) << 63

// mcause values for an environment call from each privilege level.
const (
	McauseEcallU = 8
	McauseEcallS = 9
	McauseEcallM = 11
)

// scause values this kernel handles in supervisor mode.
const (
	ScauseEcallU = 8
	ScauseEcallS = 9
	ScauseTimerS = 5 | InterruptFlag
)

// CSRs is the set of control-status-register accessors a trap handler
// needs. The riscv64 build satisfies this with real `csrr`/`csrw`
// instructions (csr_riscv64.go); tests supply a fake.
type CSRs interface {
	MepcRead() uint64
	MepcWrite(uint64)
	SepcRead() uint64
	SepcWrite(uint64)
}

// MTrapHandler classifies a machine-mode trap and bumps mepc past the
// faulting instruction for any ecall, mirroring mtrap_handler. It reports
// whether mcause was recognized as an ecall.
func MTrapHandler(mcause uint64, csr CSRs) (wasEcall bool) {
	switch mcause {
	case McauseEcallM, McauseEcallS, McauseEcallU:
		csr.MepcWrite(csr.MepcRead() + 4)
		return true
	}
	return false
}

// STrapEvent classifies what a supervisor-mode trap was, for callers that
// want to log or branch on it beyond STrapHandler's own bump-and-rearm
// behavior.
type STrapEvent int

const (
	SEventOther STrapEvent = iota
	SEventEcall
	SEventTimer
)

// ClassifyScause reports which recognized event scause represents.
func ClassifyScause(scause uint64) STrapEvent {
	switch scause {
	case ScauseEcallU, ScauseEcallS:
		return SEventEcall
	case ScauseTimerS:
		return SEventTimer
	default:
		return SEventOther
	}
}

// STrapHandler classifies a supervisor-mode trap, bumps sepc past an
// ecall, and re-arms the timer on a timer interrupt, mirroring
// strap_handler.
func STrapHandler(scause uint64, csr CSRs, rearmTimer func()) STrapEvent {
	event := ClassifyScause(scause)
	switch event {
	case SEventEcall:
		csr.SepcWrite(csr.SepcRead() + 4)
	case SEventTimer:
		if rearmTimer != nil {
			rearmTimer()
		}
	}
	return event
}

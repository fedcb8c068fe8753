//go:build riscv64

// Package riscv64 is the architecture glue layer: linker-symbol externs
// for the kernel's own segments, BSS clearing, the CLINT timer, and the
// M→S privilege drop performed once at boot.
//
// Grounded on original_source/src/arch.rs, src/arch/riscv64.rs (CLINT
// constants, enable_timer/set_timer/get_sys_time) and
// src/arch/riscv64/cpu.rs (trap_switch_to_s_level, switch_to_s_level).
// The linker-symbol pattern (Go functions with no body, returning an
// address baked in by the linker) follows the teacher's own
// getLinkerSymbol/asm.GetTextStartAddr convention in
// mazboot/golang/main/memory.go.
package riscv64

import "unsafe"

// CLINT is the RISC-V core-local interruptor's base address on a
// QEMU-virt machine, and the two registers this kernel touches within it.
const (
	CLINT         = 0x2000000
	ClintMTime    = CLINT + 0xbff8
	ClintMTimeCmp = CLINT + 0x4000

	// TimerInterval is the number of CLINT ticks between re-arms.
	TimerInterval = 1000

	// ModeSV39 is the SATP mode field selecting 39-bit addressing.
	ModeSV39 = 8
)

// Linker-symbol externs: addresses of the kernel's own segments, baked in
// by the link step. Each has no Go body; its value comes from the
// matching symbol in linker_riscv64.s.
func KernelStart() uintptr
func KernelEnd() uintptr
func RodataStart() uintptr
func RodataEnd() uintptr
func DataStart() uintptr
func DataEnd() uintptr
func BssStart() uintptr
func BssEnd() uintptr
func HeapStart() uintptr

// ClearBSS zeroes the kernel's BSS segment, the first thing kernel_main
// does before touching any global state.
func ClearBSS() {
	start, end := BssStart(), BssEnd()
	for addr := start; addr < end; addr++ {
		*(*byte)(unsafe.Pointer(addr)) = 0
	}
}

// GetSysTime reads the CLINT's free-running timer.
func GetSysTime() uint64 {
	return *(*uint64)(unsafe.Pointer(uintptr(ClintMTime)))
}

// SetTimer arms the next timer interrupt interval ticks from now.
func SetTimer(interval uint64) {
	*(*uint64)(unsafe.Pointer(uintptr(ClintMTimeCmp))) = GetSysTime() + interval
}

// EnableTimer arms the first timer interrupt and sets the MIE/MTIE bits
// enabling it to fire, mirroring enable_timer.
func EnableTimer() {
	SetTimer(TimerInterval)

	mstatus := mstatusRead()
	mstatus |= 1 << 3
	mstatusWrite(mstatus)

	mie := mieRead()
	mie |= 1 << 7
	mieWrite(mie)
}

// SwitchToSLevel performs the one-time M→S privilege drop: it installs a
// trap handler at mtvec that reconfigures mstatus.MPP, the PMP registers,
// and SATP, triggers it with an ecall, then restores the previous mtvec,
// mirroring switch_to_s_level/trap_switch_to_s_level exactly.
func SwitchToSLevel() {
	oldMtvec := mtvecRead()
	mtvecWrite(trapSwitchToSLevelAddr())
	doEcall()
	mtvecWrite(oldMtvec)
}

// The following have no Go body; each is implemented in riscv64.s as a
// single CSR or control instruction.
func mstatusRead() uint64
func mstatusWrite(uint64)
func mieRead() uint64
func mieWrite(uint64)
func mtvecRead() uint64
func mtvecWrite(uint64)
func doEcall()
func trapSwitchToSLevelAddr() uint64

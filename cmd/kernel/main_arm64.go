//go:build arm64

// aarch64 is a stub target: the memory subsystem's portable packages build
// for it, but no arch glue layer equivalent to internal/riscv64 exists yet,
// so boot refuses to proceed rather than silently skipping the CPU/MMU
// bring-up an arm64 port would need.
package main

func main() {
	panic("kernel: aarch64 boot is not implemented")
}

//go:build riscv64

// Command kernel is the boot entry point: it wires every memory-subsystem
// package into the sequence original_source/src/main.rs's kernel_main
// follows, in the same order.
package main

import (
	"github.com/31core/rv39kernel/internal/buddy"
	"github.com/31core/rv39kernel/internal/console"
	"github.com/31core/rv39kernel/internal/devfs"
	"github.com/31core/rv39kernel/internal/kmsg"
	kpanic "github.com/31core/rv39kernel/internal/panic"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/platform"
	"github.com/31core/rv39kernel/internal/riscv64"
	"github.com/31core/rv39kernel/internal/rng"
	"github.com/31core/rv39kernel/internal/slab"
	"github.com/31core/rv39kernel/internal/sv39"
	"github.com/31core/rv39kernel/internal/task"
	"github.com/31core/rv39kernel/internal/vfs"
)

func main() {
	riscv64.ClearBSS()

	var allocator buddy.Allocator
	allocator.Init(0, platform.KernelHeapPages)

	arena := physmem.NewArenaAt(riscv64.HeapStart(), platform.KernelHeapPages)

	// Install the slab cache as the kernel's general-purpose allocator
	// façade (C2) before anything that might want to grow a dynamically
	// sized buffer through it, mirroring the Rust build's
	// #[global_allocator] wiring happening before any heap use.
	slab.Init(&allocator, arena)

	kernelPage := sv39.New(&allocator, arena)
	region := sv39.KernelRegion{
		TextStartPage:   uint64(riscv64.KernelStart()) / platform.PageSize,
		TextPages:       (uint64(riscv64.KernelEnd()) - uint64(riscv64.KernelStart())) / platform.PageSize,
		RodataStartPage: uint64(riscv64.RodataStart()) / platform.PageSize,
		RodataPages:     (uint64(riscv64.RodataEnd()) - uint64(riscv64.RodataStart())) / platform.PageSize,
		DataStartPage:   uint64(riscv64.DataStart()) / platform.PageSize,
		DataPages:       (uint64(riscv64.DataEnd()) - uint64(riscv64.DataStart())) / platform.PageSize,
		BssStartPage:    uint64(riscv64.BssStart()) / platform.PageSize,
		BssPages:        (uint64(riscv64.BssEnd()) - uint64(riscv64.BssStart())) / platform.PageSize,
	}

	registry, err := task.Init(kernelPage, region)
	if err != nil {
		kpanic.Fatalf("task.Init: %v", err)
	}
	_ = registry

	riscv64.EnableTimer()
	riscv64.SwitchToSLevel()

	var generator rng.MT19937
	generator.Seed(uint32(riscv64.GetSysTime()))

	msgs := kmsg.NewWithClock(riscv64.GetSysTime)
	kpanic.Sink = msgs.Add

	con := console.NewDevice(msgs, 80, 24)

	tree := vfs.New()
	tree.Mount(devfs.New(&generator, msgs, con), []string{"dev"})

	msgs.Add("kernel boot complete")

	for {
		riscv64.SetTimer(riscv64.TimerInterval)
	}
}

package task_test

import (
	"testing"

	"github.com/31core/rv39kernel/internal/buddy"
	"github.com/31core/rv39kernel/internal/physmem"
	"github.com/31core/rv39kernel/internal/sv39"
	"github.com/31core/rv39kernel/internal/task"
)

func newPage(t *testing.T) (*sv39.Manager, *buddy.Allocator) {
	t.Helper()
	arena := physmem.NewArena(512)
	var b buddy.Allocator
	b.Init(0, 512)
	return sv39.New(&b, arena), &b
}

func TestInitCreatesKernelTask(t *testing.T) {
	page, _ := newPage(t)
	region := sv39.KernelRegion{
		TextStartPage: 10, TextPages: 2,
		BssStartPage: 0, BssPages: 2,
	}

	reg, err := task.Init(page, region)
	if err != nil {
		t.Fatal(err)
	}

	tasks := reg.Tasks()
	if len(tasks) != 1 || tasks[0].PID != 0 {
		t.Fatalf("expected a single PID-0 kernel task, got %+v", tasks)
	}

	if _, ok := page.Walk(0); !ok {
		t.Fatal("expected the kernel region's bss page to be mapped")
	}
	if _, ok := page.Walk(10); !ok {
		t.Fatal("expected the kernel region's text page to be mapped")
	}
}

func TestForkAssignsIncrementingPIDs(t *testing.T) {
	kernelPage, _ := newPage(t)
	reg, err := task.Init(kernelPage, sv39.KernelRegion{})
	if err != nil {
		t.Fatal(err)
	}

	childPage, _ := newPage(t)
	child1 := reg.Fork(childPage)
	child2 := reg.Fork(childPage)

	if child1.PID != 1 || child2.PID != 2 {
		t.Fatalf("PIDs = %d, %d, want 1, 2", child1.PID, child2.PID)
	}

	if _, ok := reg.Lookup(1); !ok {
		t.Fatal("expected to find PID 1")
	}
	if _, ok := reg.Lookup(99); ok {
		t.Fatal("did not expect to find PID 99")
	}
}

// Package task implements the kernel's task registry: the kernel task
// (PID 0) plus whatever address spaces kernel_fork-equivalent calls add
// after it.
//
// Grounded on original_source/src/task.rs (Task, task_init, kernel_fork).
// Non-goals exclude preemptive scheduling and userland loading, so this
// package only tracks address spaces and PIDs; there is no run queue or
// context switch here beyond PageManagement.SwitchTo.
package task

import "github.com/31core/rv39kernel/internal/sv39"

// Task is one task's identity and address space.
type Task struct {
	PID  uint64
	Page sv39.PageManagement
}

// Registry holds every live task, process-wide singleton lifetime per
// spec.md §9. The zero value is empty; Init populates PID 0.
type Registry struct {
	tasks  []Task
	nextID uint64
}

// Init builds the kernel task: PID 0, with page identity-mapping the
// kernel region and then switching into it, mirroring task_init.
func Init(kernelPage sv39.PageManagement, region sv39.KernelRegion) (*Registry, error) {
	if err := kernelPage.MapKernelRegion(region); err != nil {
		return nil, err
	}
	kernelPage.SwitchTo()

	r := &Registry{nextID: 1}
	r.tasks = append(r.tasks, Task{PID: 0, Page: kernelPage})
	return r, nil
}

// Fork appends a new task with its own address space and the next
// available PID, mirroring kernel_fork.
func (r *Registry) Fork(page sv39.PageManagement) Task {
	t := Task{PID: r.nextID, Page: page}
	r.nextID++
	r.tasks = append(r.tasks, t)
	return t
}

// Tasks returns every live task, kernel task first.
func (r *Registry) Tasks() []Task {
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Lookup finds a task by PID.
func (r *Registry) Lookup(pid uint64) (Task, bool) {
	for _, t := range r.tasks {
		if t.PID == pid {
			return t, true
		}
	}
	return Task{}, false
}

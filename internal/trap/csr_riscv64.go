//go:build riscv64

package trap

// hwCSRs is the real hardware CSRs implementation, backed by the asm
// stubs in csr_riscv64.s, mirroring cpu.rs's asm_wrap module.
type hwCSRs struct{}

// HW is the singleton CSRs accessor for MTrapHandler / STrapHandler on the
// real target. cmd/kernel does not call either handler.
var HW CSRs = hwCSRs{}

func (hwCSRs) MepcRead() uint64   { return mepcRead() }
func (hwCSRs) MepcWrite(v uint64) { mepcWrite(v) }
func (hwCSRs) SepcRead() uint64   { return sepcRead() }
func (hwCSRs) SepcWrite(v uint64) { sepcWrite(v) }

func mepcRead() uint64
func mepcWrite(v uint64)
func sepcRead() uint64
func sepcWrite(v uint64)

func mieRead() uint64
func mieWrite(v uint64)
func sieRead() uint64
func sieWrite(v uint64)
func sstatusRead() uint64
func sstatusWrite(v uint64)
func mtvecRead() uint64
func mtvecWrite(v uint64)
func mcauseRead() uint64
func scauseRead() uint64
func satpWrite(v uint64)
func sfence()

// Package octvm wires together the shared singletons a running OctaneVM
// needs: the core allocator, the symbol store, configuration, logging, and
// the virtual-processor registry that backs spawn/merge (spec.md §5: "Each
// virtual processor is pinned to one executor thread... spawned virtual
// processors outlive their spawner and are joined via merge"). Grounded on
// internal/vm/vm.go's VM struct shape (owns shared singletons, constants for
// growth increments), adapted from funxy's stack-machine globals to
// OctaneVM's allocator+symbol-store pair.
package octvm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/octanevm/octane/internal/octalloc"
	"github.com/octanevm/octane/internal/octexec"
	"github.com/octanevm/octane/internal/octfunc"
	"github.com/octanevm/octane/internal/octsym"
	"github.com/octanevm/octane/internal/octvp"
)

// Sentinel errors for conditions callers are expected to compare against
// with errors.Is, mirroring internal/vm/vm.go's errEarlyReturn/
// errStackUnderflow family.
var (
	errUnknownVP     = errors.New("octvm: unknown virtual processor")
	errVPStillRunning = errors.New("octvm: virtual processor has not finished")
	errSpawnTargetInvalid = errors.New("octvm: spawn target does not resolve to a function symbol")
)

// Logger is a minimal, two-method logging surface satisfied by
// *slog.Logger, a no-op stub, or a test spy — the one ambient concern where
// the teacher itself leans on the standard library rather than a
// third-party logging package (see DESIGN.md / SPEC_FULL.md §2).
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything; the default when no Logger is supplied.
type NopLogger struct{}

func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// vpEntry tracks one spawned virtual processor: its VP, the goroutine that
// runs it, and the state the goroutine leaves behind once it finishes so a
// later Merge can join it.
type vpEntry struct {
	vp   *octvp.VP
	done chan struct{}
	res  *octexec.State
}

// VM owns the allocator and symbol-store singletons every virtual processor
// shares, plus the registry of spawned VPs that backs spawn/merge (spec.md
// §4.6: "spawn"/"merge" opcodes; §5: "virtual processors outlive their
// spawner and are joined via merge").
type VM struct {
	ID uuid.UUID

	alloc *octalloc.Allocator
	store *octsym.Store

	Config Config
	Log    Logger

	mainVP *octvp.VP

	mu  sync.Mutex
	vps map[uuid.UUID]*vpEntry
}

// New constructs a VM from cfg, creating the allocator (capped per
// cfg.AllocatorCapBytes), a fresh symbol store, and one main virtual
// processor sized per cfg.StackBytes/LocalBytes. log may be nil, in which
// case a NopLogger is installed.
func New(cfg Config, log Logger) *VM {
	if log == nil {
		log = NopLogger{}
	}
	vm := &VM{
		ID:     uuid.New(),
		alloc:  octalloc.NewAllocator(cfg.AllocatorCapBytes),
		store:  octsym.NewStore(),
		Config: cfg,
		Log:    log,
		vps:    make(map[uuid.UUID]*vpEntry),
	}
	vm.mainVP = octvp.New(cfg.StackBytes, cfg.LocalBytes)
	vm.vps[vm.mainVP.ID] = &vpEntry{vp: vm.mainVP}
	log.Info("vm started", "vm_id", vm.ID, "main_vp", vm.mainVP.ID)
	return vm
}

// Allocator satisfies octexec.VM.
func (vm *VM) Allocator() *octalloc.Allocator { return vm.alloc }

// Symbols satisfies octexec.VM.
func (vm *VM) Symbols() *octsym.Store { return vm.store }

// MainVP returns the VM's initial virtual processor.
func (vm *VM) MainVP() *octvp.VP { return vm.mainVP }

// DefineFunc is a convenience that assigns fn into the symbol store under
// key with type func, the common shape an assembler-produced program uses
// to register its entry points (spec.md §3: "Functions are owned by
// whatever created them (usually the symbol store holds their pointer via
// a symbol of type func)").
func (vm *VM) DefineFunc(key string, fn *octfunc.Function) (*octsym.Symbol, octsym.ErrCode) {
	return vm.store.Assign(octsym.Request{Type: octsym.TypeFunc, Key: key, Value: fn})
}

// Run executes fn on the VM's main virtual processor to completion under
// the default fault handler.
func (vm *VM) Run(fn *octfunc.Function) *octexec.State {
	return octexec.Run(vm, vm.mainVP, fn)
}

// Spawn starts fn running on a brand-new virtual processor in its own
// goroutine (spec.md §5: "multiple OS-backed threads may coexist inside one
// VM... spawned virtual processors outlive their spawner"), returning the
// new VP's identity immediately. The caller joins it later with Merge.
func (vm *VM) Spawn(fn *octfunc.Function) uuid.UUID {
	vp := octvp.New(vm.Config.StackBytes, vm.Config.LocalBytes)
	entry := &vpEntry{vp: vp, done: make(chan struct{})}

	vm.mu.Lock()
	vm.vps[vp.ID] = entry
	vm.mu.Unlock()

	vm.Log.Info("vp spawned", "vp_id", vp.ID)
	go func() {
		entry.res = octexec.Run(vm, vp, fn)
		close(entry.done)
	}()
	return vp.ID
}

// SpawnFromSymbol resolves key against the symbol store and spawns it,
// the VM-level counterpart to the OpSpawn bytecode instruction (which only
// validates that its relocation-table target resolves; the actual VP
// registry lives here per octexec/exec.go's DESIGN.md note).
func (vm *VM) SpawnFromSymbol(key string) (uuid.UUID, error) {
	sym := vm.store.Lookup(key)
	if sym == nil || sym.Type != octsym.TypeFunc {
		return uuid.UUID{}, errSpawnTargetInvalid
	}
	fn, ok := sym.Value.(*octfunc.Function)
	if !ok {
		return uuid.UUID{}, errSpawnTargetInvalid
	}
	return vm.Spawn(fn), nil
}

// Merge blocks until the spawned virtual processor identified by id
// finishes, then transfers size bytes from its stack onto dst's stack
// (spec.md §4.2's StackMerge semantics) and retires the entry. Merging a
// VP that is still running blocks until it completes — matching "callers
// must ensure the other thread is quiescent" for anything merge touches,
// which is exactly what this synchronization guarantees.
func (vm *VM) Merge(dst *octvp.VP, id uuid.UUID, size int) (int, error) {
	vm.mu.Lock()
	entry, ok := vm.vps[id]
	vm.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", errUnknownVP, id)
	}
	if entry.done != nil {
		<-entry.done
	}

	remaining := dst.Thread.StackMerge(entry.vp.Thread, size)

	vm.mu.Lock()
	delete(vm.vps, id)
	vm.mu.Unlock()

	vm.Log.Info("vp merged", "vp_id", id, "remaining", remaining)
	return remaining, nil
}

// TryMerge is the non-blocking counterpart to Merge: it reports
// errVPStillRunning instead of waiting if the target hasn't finished yet.
func (vm *VM) TryMerge(dst *octvp.VP, id uuid.UUID, size int) (int, error) {
	vm.mu.Lock()
	entry, ok := vm.vps[id]
	vm.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", errUnknownVP, id)
	}
	if entry.done != nil {
		select {
		case <-entry.done:
		default:
			return 0, errVPStillRunning
		}
	}
	return vm.Merge(dst, id, size)
}

// Validate runs the allocator's accounting validation, giving a single
// health check for diagnostics/tests. The symbol store is not checked.
func (vm *VM) Validate() octalloc.ErrCode {
	return vm.alloc.Validate()
}

// Dump renders a combined allocator-counter and symbol-store debug dump,
// the convenience spec.md §7 allows ("A debug log operation is provided on
// the allocation header and on the symbol store... this is a convenience,
// not a contract").
func (vm *VM) Dump() string {
	return fmt.Sprintf("VM{id=%s object_bytes=%d system_bytes=%d}\n%s",
		vm.ID, vm.alloc.ObjectBytes(), vm.alloc.SystemBytes(), vm.store.Dump())
}

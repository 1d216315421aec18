package exec

import (
	"code.hybscloud.com/lumen/internal/lumen/diag"
	"code.hybscloud.com/lumen/internal/lumen/suspend"
	"code.hybscloud.com/lumen/internal/lumen/value"
)

// execResume implements the Resume opcode (spec.md §4.3's "resume (from
// host)"): the bytecode realization of a script-level `g.resume(v)` call
// on a generator or stream value. Stack shape: [..., generator, sent] ->
// [..., GeneratorState].
func (vm *Vm) execResume() error {
	sent := vm.stack.Pop()
	genVal := vm.stack.Pop()

	f, err := vm.futureOf(genVal)
	if err != nil {
		return err
	}
	if f.Kind() != suspend.KindGenerator && f.Kind() != suspend.KindStream {
		return diag.New(diag.KindWrongCallKind, "resume() requires a generator or stream, got %s", f.Kind())
	}

	r, err := f.Resume(sent)
	if err != nil {
		return err
	}
	v, err := vm.heap.NewTagged(value.TagGeneratorState, 0, &genStatePayload{done: !r.Yielded, value: r.Value}, 32)
	if err != nil {
		return err
	}
	vm.stack.Push(v)
	vm.ip++
	return nil
}

package suspend

import "code.hybscloud.com/lumen/internal/lumen/value"

// Generator is a thin, typed view over a Future of KindGenerator, giving
// callers the `Yielded(e)` / `Complete(v)` vocabulary of spec.md §4.5
// instead of the raw PollResult shape.
type Generator struct{ f *Future }

// AsGenerator wraps a Future previously constructed with NewGenerator.
func AsGenerator(f *Future) *Generator { return &Generator{f: f} }

// GeneratorState mirrors value.TagGeneratorState: the outcome of one
// resume — either the body yielded a value and is still live, or it
// completed (by `return` or falling off its end).
type GeneratorState struct {
	Done  bool
	Value value.Value
}

// Next is sugar for Resume(unit) discarding the sent value, mapped to the
// Option<Value> spec.md §4.5 describes — here expressed as
// GeneratorState.Done rather than a value.Value Option, since callers
// needing the Option representation construct one from this directly.
func (g *Generator) Next() (GeneratorState, error) {
	return g.Resume(value.Unit)
}

// Resume sends v into the generator's current `yield` expression and
// runs it to its next yield or completion.
func (g *Generator) Resume(v value.Value) (GeneratorState, error) {
	r, err := g.f.Resume(v)
	if err != nil {
		return GeneratorState{}, err
	}
	return GeneratorState{Done: !r.Yielded, Value: r.Value}, nil
}

func (g *Generator) Future() *Future { return g.f }

package runnable

import "context"

// Sequence is an ordered, immutable list of runnables folded left-to-right
// (spec §4.2). Sequence.Run(input) threads each step's output into the
// next step's input; Sequence.Stream streams only the final step, having
// materialized every upstream step normally first.
type Sequence struct {
	shell
	steps []Runnable
}

// NewSequence builds a sequence from the given steps, flattening any
// sub-sequences passed in so To() never nests Sequences inside Sequences.
func NewSequence(steps ...Runnable) *Sequence {
	flat := make([]Runnable, 0, len(steps))
	for _, s := range steps {
		if sub, ok := s.(*Sequence); ok {
			flat = append(flat, sub.steps...)
			continue
		}
		flat = append(flat, s)
	}
	return &Sequence{steps: flat}
}

func (s *Sequence) clone() *Sequence {
	cp := *s
	cp.steps = append([]Runnable(nil), s.steps...)
	return &cp
}

// To returns a new Sequence with next appended; s itself is untouched.
func (s *Sequence) To(next Runnable) Runnable {
	steps := append(append([]Runnable(nil), s.steps...), next)
	return NewSequence(steps...)
}

// Run folds every step left-to-right, each output becoming the next
// step's input, merging this sequence's stored params/options under the
// runtime values at every step (runtime wins, per spec §4.2).
func (s *Sequence) Run(ctx context.Context, input any, params Params, opts Options) (any, error) {
	p, o := s.resolve(params, opts)
	current := input
	for _, step := range s.steps {
		out, err := step.Run(ctx, current, p, o)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

// Stream materializes every step but the last, then streams the last step
// (spec §4.2: "On stream, the final step is streamed; upstream steps
// execute normally and materialize intermediate values").
func (s *Sequence) Stream(ctx context.Context, onChunk func(StreamChunk), input any, params Params, opts Options) error {
	p, o := s.resolve(params, opts)
	if len(s.steps) == 0 {
		onChunk(StreamChunk{Done: true, Raw: input})
		return nil
	}

	current := input
	for _, step := range s.steps[:len(s.steps)-1] {
		out, err := step.Run(ctx, current, p, o)
		if err != nil {
			onChunk(StreamChunk{Done: true, Err: err})
			return err
		}
		current = out
	}
	last := s.steps[len(s.steps)-1]
	return last.Stream(ctx, onChunk, current, p, o)
}

func (s *Sequence) GetName() string { return s.name }
func (s *Sequence) WithName(name string) Runnable {
	c := s.clone()
	c.name = name
	return c
}
func (s *Sequence) WithParams(p Params) Runnable {
	c := s.clone()
	c.params = c.params.merge(p)
	return c
}
func (s *Sequence) WithOptions(o Options) Runnable {
	c := s.clone()
	c.opts = c.opts.merge(o)
	return c
}

// Steps returns the ordered step list (a defensive copy), for
// introspection/testing.
func (s *Sequence) Steps() []Runnable {
	return append([]Runnable(nil), s.steps...)
}

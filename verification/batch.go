package verification

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Outcome is the result of one signature of a batch.
type Outcome struct {
	Result *Result
	Err    error
}

// VerifyAll verifies independent signatures concurrently, at most
// WithConcurrency at a time. Outcomes are in the order of inputs; a failed
// signature does not stop the others. The returned error is only set when
// ctx ends before every signature ran.
func (v *Verifier) VerifyAll(ctx context.Context, inputs []*Input) ([]Outcome, error) {
	out := make([]Outcome, len(inputs))
	var eg errgroup.Group
	eg.SetLimit(v.concurrency)
	for i, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		i, in := i, in
		eg.Go(func() error {
			res, err := v.Verify(ctx, in)
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		for i := range out {
			if out[i].Result == nil && out[i].Err == nil {
				out[i].Err = err
			}
		}
		return out, err
	}
	return out, nil
}

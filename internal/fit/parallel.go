package fit

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/grnfit/internal/model"
	"github.com/cwbudde/grnfit/internal/ode"
)

// Pool is a long-lived worker pool shared across many cost evaluations.
// Creating workers per evaluation is expensive at population x generation
// call rates, so a Pool outlives the evaluator that uses it.
type Pool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// NewPool starts a pool with the given number of workers. Zero or
// negative picks the number of CPUs.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	p := &Pool{tasks: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// Submit queues one unit of work.
func (p *Pool) Submit(task func()) { p.tasks <- task }

// Close stops the workers after the queued work drains.
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
}

// ParallelPerturbEvaluator computes the same perturbation cost as
// PerturbEvaluator in independent mode, fanning the per-factor work out
// over a Pool. Every unit of work carries its own deep copy of the
// solution vector and its own scratch buffers, so no worker can observe
// another's in-place mutation; isolation does not rely on scheduling.
//
// This variant has no baseline cache and no compounding: each factor's
// control/perturbed trajectory pair is computed independently. It is a
// documented behavioural divergence from the sequential evaluator's
// Compound mode, and matches Compound=false within floating-point
// tolerance.
type ParallelPerturbEvaluator struct {
	n    int
	mask *model.Mask
	y0   []float64
	set  *PerturbationSet
	cfg  ode.Config
	pool *Pool

	integrate integrateFunc
}

// NewParallelPerturbEvaluator wires the evaluator onto an existing pool.
func NewParallelPerturbEvaluator(mask *model.Mask, y0 []float64, set *PerturbationSet, cfg ode.Config, pool *Pool) (*ParallelPerturbEvaluator, error) {
	seq, err := NewPerturbEvaluator(mask, y0, set, cfg)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return nil, fmt.Errorf("worker pool is required")
	}
	return &ParallelPerturbEvaluator{
		n:         seq.n,
		mask:      seq.mask,
		y0:        seq.y0,
		set:       seq.set,
		cfg:       seq.cfg,
		pool:      pool,
		integrate: ode.Integrate,
	}, nil
}

// Cost evaluates one candidate vector. Results are gathered in factor
// order before the reduction, so the output is deterministic regardless
// of worker scheduling.
func (e *ParallelPerturbEvaluator) Cost(params []float64) float64 {
	k := e.set.K()
	rows := make([][]float64, k)

	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		i := i
		own := make([]float64, len(params))
		copy(own, params)
		wg.Add(1)
		e.pool.Submit(func() {
			defer wg.Done()
			rows[i] = e.factorRatios(own, i)
		})
	}
	wg.Wait()

	ratios := make([]float64, 0, k*e.n)
	for _, row := range rows {
		ratios = append(ratios, row...)
	}
	return reduceRatios(ratios, e.set.FlatMagnitudes())
}

// factorRatios runs the control and perturbed integration for one factor
// on a private copy of the vector and returns the final-time-point ratio
// per node.
func (e *ParallelPerturbEvaluator) factorRatios(own []float64, i int) []float64 {
	times := e.set.Times(i)
	scratch := mat.NewDense(e.n, e.n, nil)

	ctrl := e.simulateWith(own, times, scratch)

	own[i] *= 1 + e.set.Magnitude(i)
	traj := e.simulateWith(own, times, scratch)

	last := len(times) - 1
	row := make([]float64, e.n)
	for j := 0; j < e.n; j++ {
		row[j] = traj.At(last, j) / ctrl.At(last, j)
	}
	return row
}

func (e *ParallelPerturbEvaluator) simulateWith(v []float64, times []float64, scratch *mat.Dense) *mat.Dense {
	pv, err := model.Wrap(v, e.n, e.mask.Count())
	if err != nil {
		panic(err)
	}
	e.mask.Apply(scratch, pv.Strengths())
	sys := model.NewSystem(pv.Lambda(), pv.Vmax(), scratch)
	traj, _ := e.integrate(sys.Derivative, e.y0, times, e.cfg)
	return traj
}

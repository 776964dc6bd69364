package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-pipe/logging"
	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Boundary selects what happens to samples left over at the end of a stream
// that cannot fill a complete frame+delta window.
type Boundary int

const (
	// BoundaryPad completes the final windows by repeating the last available
	// sample. Outputs of sample-preserving transformers are trimmed back to the
	// input length.
	BoundaryPad Boundary = iota
	// BoundaryDrop discards every window that cannot be filled from real
	// samples.
	BoundaryDrop
)

func (b Boundary) String() string {
	switch b {
	case BoundaryPad:
		return "pad"
	case BoundaryDrop:
		return "drop"
	}
	return "unknown"
}

// ParseBoundary maps "pad" or "drop" to a Boundary.
func ParseBoundary(name string) (Boundary, error) {
	switch name {
	case "", "pad":
		return BoundaryPad, nil
	case "drop":
		return BoundaryDrop, nil
	}
	return BoundaryPad, stream.NewConfigError("driver", "boundary", name, "expected pad or drop")
}

// Config holds the windowing parameters of a Driver.
type Config struct {
	Frame    int // new samples per step
	Delta    int // trailing context samples per step
	Boundary Boundary
}

// State is the lifecycle position of a Driver.
type State int

const (
	Configured State = iota
	Entered
	Flushed
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Entered:
		return "entered"
	case Flushed:
		return "flushed"
	}
	return "unknown"
}

// Emit receives the output of one step. The stream is reused by the driver
// and must be copied if retained.
type Emit func(out *stream.Stream) error

// Driver feeds a Transformer with windows of Frame+Delta samples, advancing by
// Frame samples per step.
type Driver struct {
	t      Transformer
	cfg    Config
	logger logging.Logger

	state State
	shape Shape
	dim   int
	rate  float64
	next  float64 // start time of the next window

	in      *stream.Stream
	out     *stream.Stream
	pending []float64 // samples from the read cursor on, row-major
	steps   int
	xtra    []*stream.Stream
}

// NewDriver validates cfg and returns a driver in the Configured state.
func NewDriver(t Transformer, cfg Config) (*Driver, error) {
	if t == nil {
		return nil, stream.NewConfigError("driver", "transformer", nil, "must not be nil")
	}
	if cfg.Frame <= 0 {
		return nil, stream.NewConfigError("driver", "frame", cfg.Frame, "must be positive")
	}
	if cfg.Delta < 0 {
		return nil, stream.NewConfigError("driver", "delta", cfg.Delta, "must not be negative")
	}
	if cfg.Boundary != BoundaryPad && cfg.Boundary != BoundaryDrop {
		return nil, stream.NewConfigError("driver", "boundary", cfg.Boundary, "unknown policy")
	}
	return &Driver{
		t:   t,
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "pipeline_driver",
		}),
	}, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Shape returns the output shape computed on Enter.
func (d *Driver) Shape() Shape { return d.shape }

// SetXtra installs side-channel streams handed to every following step.
func (d *Driver) SetXtra(xtra ...*stream.Stream) {
	d.xtra = xtra
}

// Steps returns the number of transform calls issued so far.
func (d *Driver) Steps() int { return d.steps }

func (d *Driver) window() int { return d.cfg.Frame + d.cfg.Delta }

// Enter fixes the input layout from template, infers the output shape once and
// enters the transformer. On error the driver stays Configured.
func (d *Driver) Enter(template *stream.Stream) error {
	if d.state != Configured {
		return fmt.Errorf("driver: enter in state %s", d.state)
	}
	if err := RequireDouble("driver", template); err != nil {
		return err
	}
	if template.Dim <= 0 {
		return stream.NewShapeError("driver", "input dim", "> 0", template.Dim)
	}

	shape := InferShape(d.t, d.cfg.Frame, template.Dim, template.Byte, template.Type)
	if shape.Dim <= 0 || shape.Num < 0 || shape.Byte <= 0 {
		return stream.NewShapeError("driver", "output shape", "positive dim and byte", fmt.Sprintf("%+v", shape))
	}

	in := stream.NewDouble(d.window(), template.Dim, template.SampleRate)
	in.Time = template.Time
	out := NewOutput(shape, d.cfg.Frame, template.SampleRate)
	out.Time = template.Time

	info := Info{Time: template.Time, FrameNum: d.cfg.Frame, DeltaNum: d.cfg.Delta}
	if err := d.t.Enter(info, in, out); err != nil {
		d.logger.Error(err, "Transformer rejected wiring")
		return fmt.Errorf("driver: enter: %w", err)
	}

	d.shape = shape
	d.dim = template.Dim
	d.rate = template.SampleRate
	d.next = template.Time
	d.in, d.out = in, out
	d.pending = d.pending[:0]
	d.steps = 0
	d.state = Entered

	d.logger.Debug("Entered", logging.Fields{
		"frame":     d.cfg.Frame,
		"delta":     d.cfg.Delta,
		"input_dim": template.Dim,
		"out_num":   shape.Num,
		"out_dim":   shape.Dim,
	})
	return nil
}

func (d *Driver) step(emit Emit, valid int) error {
	info := Info{
		Time:     d.next,
		FrameNum: d.cfg.Frame,
		DeltaNum: d.cfg.Delta,
	}
	if d.rate > 0 {
		info.Dur = float64(d.cfg.Frame) / d.rate
	}
	d.in.Time = d.next
	d.out.Time = d.next

	if err := d.t.Transform(info, d.in, d.out, d.xtra...); err != nil {
		return fmt.Errorf("driver: step %d: %w", d.steps, err)
	}
	d.steps++
	d.next += info.Dur

	if emit == nil {
		return nil
	}
	if valid < d.cfg.Frame && d.shape.Num == d.cfg.Frame {
		trimmed := d.out.Clone()
		trimmed.Resize(valid)
		return emit(trimmed)
	}
	return emit(d.out)
}

// Push appends chunk to the pending samples and runs every step whose window
// is complete.
func (d *Driver) Push(ctx context.Context, chunk *stream.Stream, emit Emit) error {
	if d.state != Entered {
		return fmt.Errorf("driver: push in state %s", d.state)
	}
	if err := RequireDouble("driver", chunk); err != nil {
		return err
	}
	if chunk.Dim != d.dim {
		return stream.NewShapeError("driver", "chunk dim", d.dim, chunk.Dim)
	}
	d.pending = append(d.pending, chunk.Float64s()...)

	win := d.window() * d.dim
	advance := d.cfg.Frame * d.dim
	consumed := 0
	for len(d.pending)-consumed >= win {
		if err := ctx.Err(); err != nil {
			d.pending = d.pending[consumed:]
			return err
		}
		copy(d.in.Float64s(), d.pending[consumed:consumed+win])
		if err := d.step(emit, d.cfg.Frame); err != nil {
			d.pending = d.pending[consumed:]
			return err
		}
		consumed += advance
	}
	d.pending = append(d.pending[:0], d.pending[consumed:]...)
	return nil
}

// Close processes the tail according to the boundary policy and flushes the
// transformer. Flush runs even if the tail fails or ctx is done.
func (d *Driver) Close(ctx context.Context, emit Emit) error {
	if d.state != Entered {
		return fmt.Errorf("driver: close in state %s", d.state)
	}
	var tailErr error
	if d.cfg.Boundary == BoundaryPad {
		tailErr = d.padTail(ctx, emit)
	}
	return errors.Join(tailErr, d.flush())
}

// Abort flushes the transformer without processing pending samples.
func (d *Driver) Abort() error {
	if d.state != Entered {
		return nil
	}
	return d.flush()
}

func (d *Driver) padTail(ctx context.Context, emit Emit) error {
	remaining := len(d.pending) / d.dim
	win := d.window()
	buf := d.in.Float64s()
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		avail := min(remaining, win)
		copy(buf, d.pending[:avail*d.dim])
		last := d.pending[(avail-1)*d.dim : avail*d.dim]
		for i := avail; i < win; i++ {
			copy(buf[i*d.dim:(i+1)*d.dim], last)
		}
		valid := min(remaining, d.cfg.Frame)
		if err := d.step(emit, valid); err != nil {
			return err
		}
		d.pending = d.pending[valid*d.dim:]
		remaining -= valid
	}
	return nil
}

func (d *Driver) flush() error {
	d.state = Flushed
	d.pending = nil
	err := d.t.Flush(d.in, d.out)
	d.logger.Debug("Flushed", logging.Fields{"steps": d.steps})
	if err != nil {
		return fmt.Errorf("driver: flush: %w", err)
	}
	return nil
}

// Run enters the driver with the layout of s, processes all of s and returns
// the concatenated outputs.
func (d *Driver) Run(ctx context.Context, s *stream.Stream) (*stream.Stream, error) {
	template := s.Like(0)
	if err := d.Enter(template); err != nil {
		return nil, err
	}

	var outputs []*stream.Stream
	collect := func(out *stream.Stream) error {
		outputs = append(outputs, out.Clone())
		return nil
	}

	if err := d.Push(ctx, s, collect); err != nil {
		return nil, errors.Join(err, d.Abort())
	}
	if err := d.Close(ctx, collect); err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		empty := NewOutput(d.shape, d.cfg.Frame, d.rate)
		empty.Resize(0)
		empty.Time = s.Time
		return empty, nil
	}
	result, err := stream.Concat(outputs[0], outputs[1:]...)
	if err != nil {
		return nil, err
	}
	result.Time = s.Time
	return result, nil
}

// Transform is a one-shot helper: it builds a driver for t and runs it over s.
func Transform(ctx context.Context, t Transformer, cfg Config, s *stream.Stream) (*stream.Stream, error) {
	d, err := NewDriver(t, cfg)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx, s)
}

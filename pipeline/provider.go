package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// Provider yields consecutive chunks of a live or stored stream. Next returns
// io.EOF once no more chunks follow.
type Provider interface {
	Next(ctx context.Context) (*stream.Stream, error)
}

// ChanProvider reads chunks from a channel until it is closed.
type ChanProvider struct {
	ch <-chan *stream.Stream
}

// NewChanProvider wraps ch.
func NewChanProvider(ch <-chan *stream.Stream) *ChanProvider {
	return &ChanProvider{ch: ch}
}

// Next blocks until a chunk arrives, ch is closed or ctx is done.
func (p *ChanProvider) Next(ctx context.Context) (*stream.Stream, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case s, ok := <-p.ch:
		if !ok {
			return nil, io.EOF
		}
		return s, nil
	}
}

// SliceProvider hands out a stored stream in chunks of a fixed size.
type SliceProvider struct {
	src   *stream.Stream
	chunk int
	pos   int
}

// NewSliceProvider splits src into chunks of chunk samples; the last chunk
// may be shorter.
func NewSliceProvider(src *stream.Stream, chunk int) *SliceProvider {
	if chunk <= 0 {
		chunk = src.Num
	}
	return &SliceProvider{src: src, chunk: chunk}
}

// Next returns the next chunk or io.EOF.
func (p *SliceProvider) Next(ctx context.Context) (*stream.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.pos >= p.src.Num {
		return nil, io.EOF
	}
	n := min(p.chunk, p.src.Num-p.pos)
	out := p.src.Like(n)
	width := p.src.Dim * p.src.Byte
	copy(out.Bytes(), p.src.Bytes()[p.pos*width:(p.pos+n)*width])
	if p.src.SampleRate > 0 {
		out.Time = p.src.Time + float64(p.pos)/p.src.SampleRate
	}
	p.pos += n
	return out, nil
}

// RunProvider enters the driver with the layout of the first chunk and feeds
// every chunk of p through it, passing step outputs to emit. The transformer
// is flushed exactly once, whatever the outcome.
func (d *Driver) RunProvider(ctx context.Context, p Provider, emit Emit) error {
	first, err := p.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := d.Enter(first.Like(0)); err != nil {
		return err
	}

	chunk := first
	for {
		if err := d.Push(ctx, chunk, emit); err != nil {
			return errors.Join(err, d.Abort())
		}
		chunk, err = p.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Join(err, d.Abort())
		}
	}
	return d.Close(ctx, emit)
}

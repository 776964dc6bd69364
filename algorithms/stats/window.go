package stats

import (
	"github.com/RyanBlaney/sonido-pipe/algorithms/common"
)

// running keeps the sum and sum of squares of the last win samples of one
// channel.
type running struct {
	ring   *common.Ring
	sum    float64
	sumsq  float64
	pushed int
}

func newRunning(win int) *running {
	return &running{ring: common.NewRing(win)}
}

func (r *running) push(x float64) {
	if old, full := r.ring.Push(x); full {
		r.sum -= old
		r.sumsq -= old * old
	}
	r.sum += x
	r.sumsq += x * x

	// resync once per cycle so rounding of the running sums cannot drift
	r.pushed++
	if r.pushed == r.ring.Size() {
		r.pushed = 0
		r.sum, r.sumsq = 0, 0
		for i := range r.ring.Len() {
			v := r.ring.At(i)
			r.sum += v
			r.sumsq += v * v
		}
	}
}

func (r *running) len() int { return r.ring.Len() }

func (r *running) mean() float64 {
	if r.ring.Len() == 0 {
		return 0
	}
	return r.sum / float64(r.ring.Len())
}

// variance is the population variance of the window.
func (r *running) variance() float64 {
	n := float64(r.ring.Len())
	if n == 0 {
		return 0
	}
	m := r.sum / n
	return max(r.sumsq/n-m*m, 0)
}

func (r *running) reset() {
	r.ring.Clear()
	r.sum, r.sumsq, r.pushed = 0, 0, 0
}

type entry struct {
	idx int
	v   float64
}

// extrema tracks the minimum and maximum of the last win samples of one
// channel with two monotonic deques.
type extrema struct {
	win    int
	t      int
	lo, hi []entry
	loHead int
	hiHead int
}

func newExtrema(win int) *extrema {
	return &extrema{win: win}
}

func (e *extrema) push(x float64) {
	e.lo = pushMono(e.lo, e.loHead, entry{e.t, x}, func(a, b float64) bool { return a >= b })
	e.hi = pushMono(e.hi, e.hiHead, entry{e.t, x}, func(a, b float64) bool { return a <= b })
	oldest := e.t - e.win + 1
	for e.lo[e.loHead].idx < oldest {
		e.loHead++
	}
	for e.hi[e.hiHead].idx < oldest {
		e.hiHead++
	}
	e.lo, e.loHead = compact(e.lo, e.loHead)
	e.hi, e.hiHead = compact(e.hi, e.hiHead)
	e.t++
}

// pushMono drops entries from the back while drop(back, x) holds, then
// appends x.
func pushMono(q []entry, head int, x entry, drop func(back, v float64) bool) []entry {
	for len(q) > head && drop(q[len(q)-1].v, x.v) {
		q = q[:len(q)-1]
	}
	return append(q, x)
}

func compact(q []entry, head int) ([]entry, int) {
	if head > 0 && head >= len(q)/2 {
		n := copy(q, q[head:])
		return q[:n], 0
	}
	return q, head
}

func (e *extrema) min() float64 { return e.lo[e.loHead].v }
func (e *extrema) max() float64 { return e.hi[e.hiHead].v }

func (e *extrema) reset() {
	e.t = 0
	e.lo, e.hi = e.lo[:0], e.hi[:0]
	e.loHead, e.hiHead = 0, 0
}

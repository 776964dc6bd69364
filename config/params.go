package config

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/RyanBlaney/sonido-pipe/stream"
)

// params reads typed stage parameters. Keys match case-insensitively since
// viper lowercases the keys it reads. The first conversion failure is kept
// and every later read returns the default.
type params struct {
	stage  string
	values map[string]any
	err    error
}

func newParams(s Stage) *params {
	return &params{stage: strings.ToLower(s.Type), values: s.Params}
}

func (p *params) lookup(key string) (any, bool) {
	if v, ok := p.values[key]; ok {
		return v, true
	}
	for k, v := range p.values {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func (p *params) fail(key string, value any, err error) {
	if p.err == nil {
		p.err = stream.NewConfigError(p.stage, key, value, err.Error())
	}
}

func (p *params) has(key string) bool {
	_, ok := p.lookup(key)
	return ok
}

func (p *params) float(key string, def float64) float64 {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return f
}

func (p *params) int(key string, def int) int {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return i
}

func (p *params) bool(key string, def bool) bool {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func (p *params) string(key, def string) string {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return s
}

func (p *params) strings(key string) []string {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return nil
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		p.fail(key, v, err)
		return nil
	}
	return s
}

// rows reads a list of equally long numeric lists.
func (p *params) rows(key string) [][]float64 {
	v, ok := p.lookup(key)
	if !ok || p.err != nil {
		return nil
	}
	outer, err := cast.ToSliceE(v)
	if err != nil {
		p.fail(key, v, err)
		return nil
	}
	rows := make([][]float64, 0, len(outer))
	for _, item := range outer {
		inner, err := cast.ToSliceE(item)
		if err != nil {
			p.fail(key, item, err)
			return nil
		}
		row := make([]float64, len(inner))
		for i, x := range inner {
			if row[i], err = cast.ToFloat64E(x); err != nil {
				p.fail(key, x, err)
				return nil
			}
		}
		rows = append(rows, row)
	}
	return rows
}

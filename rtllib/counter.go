// Package rtllib provides a library of reusable components for rtl designs.
//
package rtllib

import (
	"github.com/pkg/errors"

	"github.com/rtlkit/rtl"
)

// Counter returns a w-bit up counter.
//
//	Inputs: en (default 1), clr (default 0)
//	Outputs: q
//	Function: on each enabled clock edge q increments; clr loads zero.
//
func Counter(w int) (*rtl.Component, error) {
	b := rtl.NewComponent("counter")
	en := b.InputDefault("en", 1, 1)
	clr := b.InputDefault("clr", 1, 0)
	q := b.Output("q", w)
	cnt := b.Register("cnt", w, 0)

	b.Behavior(func(blk *rtl.Block) {
		blk.Set(q, cnt)
	})
	b.Sequential(rtl.SeqOpts{Reset: clr, Enable: en}, func(blk *rtl.Block) {
		blk.Set(cnt, rtl.Add(cnt, rtl.Lit(1, w)))
	})
	return b.Build()
}

// Divider returns a clock-enable generator: tick pulses high for one cycle
// every n cycles. Chaining a Divider's tick into another domain's Enable is
// how designs model slower sub-clocks; there is no second clock.
//
//	Inputs: en (default 1)
//	Outputs: tick
//
func Divider(n int, w int) (*rtl.Component, error) {
	if n < 1 {
		return nil, errors.Errorf("divider: period %d must be at least 1", n)
	}
	if w < 1 || w > 64 || (w < 64 && uint64(n-1)>>uint(w) != 0) {
		return nil, errors.Errorf("divider: period %d does not fit a %d-bit counter", n, w)
	}
	b := rtl.NewComponent("divider")
	en := b.InputDefault("en", 1, 1)
	tick := b.Output("tick", 1)
	cnt := b.Register("cnt", w, 0)

	last := rtl.Lit(uint64(n-1), w)
	b.Behavior(func(blk *rtl.Block) {
		blk.Set(tick, rtl.And(rtl.Eq(cnt, last), en))
	})
	b.Sequential(rtl.SeqOpts{Enable: en}, func(blk *rtl.Block) {
		blk.Set(cnt, rtl.Mux(rtl.Eq(cnt, last), rtl.Lit(0, w), rtl.Bits(rtl.Add(cnt, rtl.Lit(1, w)), w-1, 0)))
	})
	return b.Build()
}

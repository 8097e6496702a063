// Package dfi models the signal-level handoff between a DDR memory
// controller and its PHY: the command/address channel, the write-data
// channel, and the read-data channel, each sampled and driven exactly once
// per controller cycle.
package dfi

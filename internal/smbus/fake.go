package smbus

import (
	"errors"
	"fmt"
)

// FakeBus is a scripted Transactor for tests.
type FakeBus struct {
	// Script is consumed one entry per transaction, in order, regardless
	// of style. When exhausted, transactions fail.
	Script []FakeResult

	// Calls records each transaction as "style addr/reg",
	// e.g. "stop 10/09".
	Calls []string

	// Reinits counts Reinit calls.
	Reinits int

	// ReinitError, if set, is returned by Reinit.
	ReinitError error

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// FakeResult is one scripted transaction outcome.
type FakeResult struct {
	Value uint8
	Err   error
}

// Ok builds a successful scripted transaction.
func Ok(v uint8) FakeResult { return FakeResult{Value: v} }

// Nak builds a failed scripted transaction.
func Nak() FakeResult { return FakeResult{Err: errors.New("fakebus: nak")} }

func (f *FakeBus) next(style string, addr uint16, reg uint8) (uint8, error) {
	f.Calls = append(f.Calls, fmt.Sprintf("%s %02x/%02x", style, addr, reg))
	if f.index >= len(f.Script) {
		return 0, errors.New("fakebus: script exhausted")
	}
	r := f.Script[f.index]
	f.index++
	return r.Value, r.Err
}

// StopRead returns the next scripted result.
func (f *FakeBus) StopRead(addr uint16, reg uint8) (uint8, error) {
	return f.next("stop", addr, reg)
}

// RestartRead returns the next scripted result.
func (f *FakeBus) RestartRead(addr uint16, reg uint8) (uint8, error) {
	return f.next("restart", addr, reg)
}

// Reinit counts the recovery and returns ReinitError.
func (f *FakeBus) Reinit() error {
	f.Reinits++
	return f.ReinitError
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.Closed = true
	return nil
}

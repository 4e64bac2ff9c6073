/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package si5351 programs the PLLs and output dividers of an Si5351 clock
generator.

The Engine keeps the state of both PLLs and all eight outputs, derives the
register image from that state and writes the parts that change over a
RegisterBus. All planning happens before the first write so a request that is
out of range never touches the chip.
*/
package si5351

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/platinasystems/log"

	"vfo/src/support"
)

var (
	ErrOutOfRange = support.ErrOutOfRange
	ErrDisabled   = errors.New("si5351: output disabled")
	ErrMismatch   = errors.New("si5351: register mismatch")
)

// RegisterBus moves blocks of consecutive registers to and from the chip.
type RegisterBus interface {
	WriteBlock(addr uint8, data []byte) error
	ReadBlock(addr uint8, n int) ([]byte, error)
}

type Option func(*Engine)

// WithPolicy selects how fractional dividers are approximated.
func WithPolicy(p support.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithLogger replaces log.Print. The first argument may be a priority such
// as "debug" or "warn".
func WithLogger(print func(args ...interface{})) Option {
	return func(e *Engine) { e.print = print }
}

type Engine struct {
	mu     sync.Mutex
	bus    RegisterBus
	policy support.Policy
	print  func(args ...interface{})
	vco    uint64

	initialized bool
	plls        [numPLLs]PLLState
	channels    [numChannels]OutputChannel
}

func New(bus RegisterBus, opts ...Option) *Engine {
	e := &Engine{
		bus:    bus,
		policy: support.FixedDenominator,
		print:  log.Print,
		vco:    support.VCOMaxHz,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reset()
	return e
}

func (e *Engine) reset() {
	for i := range e.plls {
		e.plls[i] = PLLState{PLL: PLL(i)}
	}
	for i := range e.channels {
		e.channels[i] = OutputChannel{Index: uint8(i), PLL: PLLA, Drive: Drive8mA}
	}
}

/*
Initialize puts the chip into a known state: every output disabled and
powered down, 10pF crystal load, both PLLs fed from the crystal, fanout
buffers on, and both PLLs at the VCO frequency and reset.
*/
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.reset()
	e.initialized = true
	img, err := e.render()
	if err != nil {
		return err
	}
	steps := []struct{ addr, n int }{
		{regOutputDisable, 1},
		{regControl0, numChannels},
		{regCrystalLoad, 1},
		{regPLLSource, 1},
		{regFanout, 1},
	}
	for _, s := range steps {
		if err := e.write(&img, s.addr, s.n); err != nil {
			return err
		}
	}
	for _, pll := range []PLL{PLLA, PLLB} {
		if err := e.configurePLL(pll); err != nil {
			return err
		}
	}
	e.print("info", "si5351: initialized, VCO ", e.vco, "Hz, policy ", e.policy)
	return nil
}

/*
SetFrequency programs one output to hz. Zero disables the output. The PLL the
channel is assigned to is reprogrammed and reset along with the channel.

Requests the channel cannot hit exactly are not errors, they are programmed
as closely as possible and flagged in OutputChannel.Approximate.
*/
func (e *Engine) SetFrequency(channel uint8, hz uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if channel >= numChannels {
		return fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	if hz == 0 {
		return e.disable(channel)
	}
	ch := e.channels[channel]
	pll, err := support.PlanPLL(e.vco, e.policy)
	if err != nil {
		return err
	}
	out, err := support.PlanOutput(channel, hz, pll, e.policy)
	if err != nil {
		return fmt.Errorf("si5351: CLK%d %dHz: %w", channel, hz, err)
	}

	e.setPLL(ch.PLL, pll)
	if err := e.configurePLL(ch.PLL); err != nil {
		return err
	}
	return e.configureChannel(out)
}

// SetDriveStrength changes the driver of one output without touching its
// divider.
func (e *Engine) SetDriveStrength(channel uint8, level Drive) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if channel >= numChannels {
		return fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	if level > Drive8mA {
		return fmt.Errorf("si5351: drive %d: %w", level, ErrOutOfRange)
	}
	e.channels[channel].Drive = level
	return e.writeControl(channel)
}

func (e *Engine) SetInvert(channel uint8, invert bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if channel >= numChannels {
		return fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	e.channels[channel].Invert = invert
	return e.writeControl(channel)
}

// AssignPLL moves a channel to the other PLL. An enabled channel is
// reprogrammed from its new PLL straight away.
func (e *Engine) AssignPLL(channel uint8, pll PLL) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if channel >= numChannels {
		return fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	if pll >= numPLLs {
		return fmt.Errorf("si5351: PLL %d: %w", pll, ErrOutOfRange)
	}
	ch := &e.channels[channel]
	ch.PLL = pll
	if !ch.Enabled {
		return e.writeControl(channel)
	}

	plan, err := support.PlanPLL(e.vco, e.policy)
	if err != nil {
		return err
	}
	out, err := support.PlanOutput(channel, ch.Freq, plan, e.policy)
	if err != nil {
		return err
	}
	e.setPLL(pll, plan)
	if err := e.configurePLL(pll); err != nil {
		return err
	}
	return e.configureChannel(out)
}

func (e *Engine) Channel(channel uint8) (OutputChannel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if channel >= numChannels {
		return OutputChannel{}, fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	return e.channels[channel], nil
}

func (e *Engine) PLL(pll PLL) (PLLState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pll >= numPLLs {
		return PLLState{}, fmt.Errorf("si5351: PLL %d: %w", pll, ErrOutOfRange)
	}
	return e.plls[pll], nil
}

func (e *Engine) Policy() support.Policy { return e.policy }

// Image is the register file the engine has written, or would write.
func (e *Engine) Image() (Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.render()
}

// OutputFrequency decodes the exact frequency of a channel from its registers.
func (e *Engine) OutputFrequency(channel uint8) (*big.Rat, error) {
	img, err := e.Image()
	if err != nil {
		return nil, err
	}
	return img.OutputFrequency(channel)
}

// Dump reads back every register of the chip.
func (e *Engine) Dump() (Image, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var img Image
	b, err := e.bus.ReadBlock(0, len(img))
	if err != nil {
		return img, err
	}
	copy(img[:], b)
	return img, nil
}

// Verify reads back the registers the engine owns and compares them with
// what it wrote.
func (e *Engine) Verify() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	img, err := e.render()
	if err != nil {
		return err
	}
	for _, r := range ownedRanges {
		b, err := e.bus.ReadBlock(r.addr, r.n)
		if err != nil {
			return err
		}
		for i, v := range b {
			addr := int(r.addr) + i
			if want := img[addr]; v != want {
				return fmt.Errorf("%w: register %d = %#02x, want %#02x", ErrMismatch, addr, v, want)
			}
		}
	}
	return nil
}

func (e *Engine) setPLL(pll PLL, plan support.PLLPlan) {
	e.plls[pll] = PLLState{
		PLL:         pll,
		Divider:     plan.Feedback,
		DivBy4:      plan.DivBy4,
		IntegerMode: plan.IntegerMode,
		VCO:         plan.VCOHz(),
		plan:        plan,
	}
}

// write sends registers addr .. addr+n-1 of img.
func (e *Engine) write(img *Image, addr, n int) error {
	err := e.bus.WriteBlock(uint8(addr), img[addr:addr+n])
	if err != nil {
		e.print("err", "si5351: write ", n, " bytes at ", addr, ": ", err)
	}
	return err
}

func (e *Engine) writeControl(channel uint8) error {
	img, err := e.render()
	if err != nil {
		return err
	}
	return e.write(&img, int(channelTable[channel].control), 1)
}

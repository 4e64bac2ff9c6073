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

package support

import (
	"errors"
	"math/big"
)

const (
	ReferenceHz = 25_000_000  // crystal feeding both PLLs
	VCOMinHz    = 600_000_000 // PLL lock range
	VCOMaxHz    = 900_000_000

	MinOutputHz = 8_000
	MaxOutputHz = 160_000_000

	// below this an R divider is put after the multisynth
	RDividerBelowHz = 500_000
	MinMultisynthHz = 500_000
	MaxRDivider     = 128

	MinMultisynth = 4
	MaxMultisynth = 2048
	// fractional multisynth dividers need a >= 8
	MinFractional = 8

	MinReducedDivider = 6
	MaxReducedDivider = 254

	MaxPhaseOffset = 0x7f

	NumChannels = 8
	// channels 6 and 7 only have an 8 bit, even, integer divider
	FirstReducedChannel = 6
)

var ErrOutOfRange = errors.New("si5351: out of range")

// PLLPlan is the feedback divider for one PLL.
type PLLPlan struct {
	Target      uint64 // requested VCO frequency, Hz
	Feedback    Divider
	DivBy4      bool
	IntegerMode bool
}

// VCO returns the frequency the feedback divider actually produces as the
// exact ratio num/den in Hz.
func (p PLLPlan) VCO() (num, den uint64) {
	c := uint64(p.Feedback.C)
	if c == 0 {
		c = 1
	}
	return ReferenceHz * (uint64(p.Feedback.A)*c + uint64(p.Feedback.B)), c
}

func (p PLLPlan) VCOHz() float64 {
	num, den := p.VCO()
	return float64(num) / float64(den)
}

/*
PlanPLL computes the feedback divider that takes the reference up to vcoHz.

The target has to be in the lock range of the PLL. Everything in that range
is representable with a 20 bit denominator so the only failure is a target
outside of it.
*/
func PlanPLL(vcoHz uint64, policy Policy) (PLLPlan, error) {
	if vcoHz < VCOMinHz || vcoHz > VCOMaxHz {
		return PLLPlan{}, ErrOutOfRange
	}
	d := approximate(policy, vcoHz, ReferenceHz, MaxDenominator)
	return PLLPlan{
		Target:      vcoHz,
		Feedback:    d,
		DivBy4:      d.IsInteger() && d.A == 4,
		IntegerMode: d.IsEvenInteger(),
	}, nil
}

// OutputPlan is everything needed to program one output stage.
type OutputPlan struct {
	Channel     uint8
	Freq        uint32 // requested output frequency, Hz
	R           uint32 // power of two, 1..128
	Multisynth  Divider
	DivBy4      bool
	IntegerMode bool
	// Approximate is set when a range clamp, rather than the 20 bit
	// denominator, limits the accuracy of the output.
	Approximate bool
}

/*
PlanOutput computes the R divider and the multisynth divider that take the
VCO described by pll down to freqHz on the given channel.

Frequencies below 500kHz get an R divider so that the multisynth itself runs
at a frequency it can reach. The multisynth ratio is then rounded to what the
channel can do: channels 0-5 take a + b/c with a in {4, 6, 8} or [8, 2048],
channels 6 and 7 take an even integer from 6 to 254. When the channel cannot
hit the ratio the closest legal value is used and the plan is flagged as
approximate. That is not an error.
*/
func PlanOutput(channel uint8, freqHz uint32, pll PLLPlan, policy Policy) (OutputPlan, error) {
	if channel >= NumChannels {
		return OutputPlan{}, ErrOutOfRange
	}
	if freqHz < MinOutputHz || freqHz > MaxOutputHz {
		return OutputPlan{}, ErrOutOfRange
	}
	vcoNum, vcoDen := pll.VCO()

	p := OutputPlan{Channel: channel, Freq: freqHz, R: 1}
	if freqHz < RDividerBelowHz {
		p.R, p.Approximate = RDivider(freqHz, vcoNum/vcoDen)
	}

	// multisynth ratio = vco / (f * r)
	num := vcoNum
	den := vcoDen * uint64(freqHz) * uint64(p.R)

	if channel >= FirstReducedChannel {
		n, exact := ReducedDivider(num, den)
		p.Multisynth = Integer(n)
		p.IntegerMode = true
		p.Approximate = p.Approximate || !exact
		return p, nil
	}

	d := approximate(policy, num, den, MaxDenominator)
	switch {
	case d.A > MaxMultisynth || d.A == MaxMultisynth && !d.IsInteger():
		d = Integer(MaxMultisynth)
		p.Approximate = true
	case d.A < MinFractional && !(d.IsInteger() && (d.A == 4 || d.A == 6)):
		d = Integer(nearest(num, den, 4, 6, 8))
		p.Approximate = true
	}
	p.Multisynth = d
	p.DivBy4 = d.IsInteger() && d.A == 4
	p.IntegerMode = d.IsEvenInteger()
	return p, nil
}

// RDivider picks the smallest power of two r such that freqHz * r is at
// least the slowest frequency the multisynth can produce from vcoHz. If even
// 128 is not enough it returns 128 and reports the clamp.
func RDivider(freqHz uint32, vcoHz uint64) (r uint32, clamped bool) {
	floor := vcoHz / MaxMultisynth
	if floor < MinMultisynthHz {
		floor = MinMultisynthHz
	}
	for r = 1; r <= MaxRDivider; r <<= 1 {
		if uint64(freqHz)*uint64(r) >= floor {
			return r, false
		}
	}
	return MaxRDivider, true
}

// ReducedDivider rounds num/den to the nearest even integer in the range of
// the channel 6 and 7 dividers. Halfway cases round up, so 7 becomes 8.
func ReducedDivider(num, den uint64) (n uint32, exact bool) {
	if den == 0 {
		return MaxReducedDivider, false
	}
	// 2 * round(x / 2)
	v := 2 * ((num + den) / (2 * den))
	switch {
	case v < MinReducedDivider:
		v = MinReducedDivider
	case v > MaxReducedDivider:
		v = MaxReducedDivider
	}
	return uint32(v), v*den == num
}

// PhaseOffset is the value of the 7 bit phase register that puts an output
// a quarter period behind its partner: the VCO to output ratio, rounded and
// clamped to the width of the field.
func PhaseOffset(pll PLLPlan, freqHz uint32) uint8 {
	if freqHz == 0 {
		return 0
	}
	num, den := pll.VCO()
	den *= uint64(freqHz)
	v := (num + den/2) / den
	if v > MaxPhaseOffset {
		v = MaxPhaseOffset
	}
	return uint8(v)
}

// Output returns the exact output frequency, in Hz, this plan produces from pll.
func (p OutputPlan) Output(pll PLLPlan) *big.Rat {
	num, den := pll.VCO()
	f := new(big.Rat).SetFrac(new(big.Int).SetUint64(num), new(big.Int).SetUint64(den))
	div := p.Multisynth.Rat()
	div.Mul(div, new(big.Rat).SetInt64(int64(p.R)))
	return f.Quo(f, div)
}

// nearest returns the candidate closest to num/den; ties go to the later one.
func nearest(num, den uint64, candidates ...uint32) uint32 {
	var best uint32
	var bestErr uint64
	for i, c := range candidates {
		v := uint64(c) * den
		e := v - num
		if num > v {
			e = num - v
		}
		if i == 0 || e <= bestErr {
			best, bestErr = c, e
		}
	}
	return best
}

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
	"math"
	"math/big"
	"testing"
)

var seed = int64(1)

func rand() float64 {
	seed = 25214903917*seed + 11
	return float64(seed&0xffff_ffff_ffff) / float64(1<<48)
}

func mustPLL(t *testing.T, policy Policy) PLLPlan {
	t.Helper()
	pll, err := PlanPLL(VCOMaxHz, policy)
	if err != nil {
		t.Fatalf("PlanPLL: %v", err)
	}
	return pll
}

func TestPlanPLL(t *testing.T) {
	pll := mustPLL(t, FixedDenominator)
	if pll.Feedback != Integer(36) || !pll.IntegerMode || pll.DivBy4 {
		t.Errorf("PlanPLL(900MHz) = %+v", pll)
	}
	if num, den := pll.VCO(); num/den != VCOMaxHz || num%den != 0 {
		t.Errorf("VCO() = %d/%d", num, den)
	}

	frac, err := PlanPLL(612_500_000, FixedDenominator)
	if err != nil {
		t.Fatalf("PlanPLL: %v", err)
	}
	if frac.IntegerMode || frac.Feedback != (Divider{24, 524288, MaxDenominator}) {
		t.Errorf("PlanPLL(612.5MHz) = %+v", frac)
	}

	for _, vco := range []uint64{0, 100_000_000, VCOMinHz - 1, VCOMaxHz + 1} {
		if _, err := PlanPLL(vco, FixedDenominator); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("PlanPLL(%d) error = %v, want ErrOutOfRange", vco, err)
		}
	}
}

func TestPlanOutput_range(t *testing.T) {
	pll := mustPLL(t, FixedDenominator)
	tests := []struct {
		channel uint8
		f       uint32
	}{
		{8, 10_000_000},
		{0, MinOutputHz - 1},
		{0, MaxOutputHz + 1},
		{0, 161_000_000},
		{7, 0},
	}
	for _, tt := range tests {
		if _, err := PlanOutput(tt.channel, tt.f, pll, FixedDenominator); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("PlanOutput(%d, %d) error = %v, want ErrOutOfRange", tt.channel, tt.f, err)
		}
	}
}

// Every even divisor of the VCO gives its frequency back exactly.
func TestPlanOutput_exact_divisors(t *testing.T) {
	pll := mustPLL(t, FixedDenominator)
	for n := uint32(6); n <= MaxMultisynth; n += 2 {
		if VCOMaxHz%n != 0 {
			continue
		}
		f := uint32(VCOMaxHz / n)
		if f < RDividerBelowHz {
			continue
		}
		for _, ch := range []uint8{0, 5, 6, 7} {
			if ch >= FirstReducedChannel && n > MaxReducedDivider {
				continue
			}
			p, err := PlanOutput(ch, f, pll, FixedDenominator)
			if err != nil {
				t.Fatalf("PlanOutput(%d, %d): %v", ch, f, err)
			}
			if p.Multisynth != Integer(n) || p.R != 1 || !p.IntegerMode || p.Approximate {
				t.Errorf("PlanOutput(%d, %d) = %+v, want integer %d", ch, f, p, n)
			}
			if out := p.Output(pll); out.Cmp(new(big.Rat).SetInt64(int64(f))) != 0 {
				t.Errorf("PlanOutput(%d, %d) produces %s", ch, f, out.FloatString(6))
			}
		}
	}
}

// Anywhere the multisynth can run fractional, the error is below one part in 2^20.
func TestPlanOutput_precision(t *testing.T) {
	bound := new(big.Rat).SetFrac64(1, 1<<20)
	for _, policy := range []Policy{FixedDenominator, BestRational} {
		pll := mustPLL(t, policy)
		top := float64(VCOMaxHz / MinFractional)
		for i := 0; i < 3000; i++ {
			f := uint32(MinOutputHz * math.Pow(top/MinOutputHz, rand()))
			ch := uint8(i % FirstReducedChannel)
			p, err := PlanOutput(ch, f, pll, policy)
			if err != nil {
				t.Fatalf("PlanOutput(%d, %d): %v", ch, f, err)
			}
			if p.Approximate {
				t.Errorf("PlanOutput(%d, %d) unexpectedly approximate: %+v", ch, f, p)
			}
			want := new(big.Rat).SetInt64(int64(f))
			rel := new(big.Rat).Sub(p.Output(pll), want)
			rel.Abs(rel)
			rel.Quo(rel, want)
			if rel.Cmp(bound) > 0 {
				t.Errorf("%s: f = %d, relative error %s with %+v", policy, f, rel.FloatString(12), p)
			}
			checkLegal(t, p)
		}
	}
}

func checkLegal(t *testing.T, p OutputPlan) {
	t.Helper()
	d := p.Multisynth
	if d.B >= d.C {
		t.Errorf("%+v: b >= c", p)
	}
	if d.C > MaxDenominator {
		t.Errorf("%+v: c too big", p)
	}
	if p.R < 1 || p.R > MaxRDivider || p.R&(p.R-1) != 0 {
		t.Errorf("%+v: bad R divider", p)
	}
	if p.R > 1 && p.Freq >= RDividerBelowHz {
		t.Errorf("%+v: R divider above 500kHz", p)
	}
	if p.Channel >= FirstReducedChannel {
		if !d.IsEvenInteger() || d.A < MinReducedDivider || d.A > MaxReducedDivider {
			t.Errorf("%+v: illegal reduced divider", p)
		}
		return
	}
	switch {
	case d.IsInteger() && (d.A == 4 || d.A == 6):
	case d.A >= MinFractional && d.A <= MaxMultisynth && (d.A < MaxMultisynth || d.IsInteger()):
	default:
		t.Errorf("%+v: illegal multisynth divider", p)
	}
	if p.IntegerMode != d.IsEvenInteger() {
		t.Errorf("%+v: integer mode bit disagrees with divider", p)
	}
}

func TestPlanOutput_cases(t *testing.T) {
	pll := mustPLL(t, FixedDenominator)
	tests := []struct {
		name        string
		channel     uint8
		f           uint32
		r           uint32
		ms          Divider
		integer     bool
		approximate bool
	}{
		{"8kHz needs R=64", 0, 8_000, 64, Divider{1757, 851967, MaxDenominator}, false, false},
		{"10kHz", 1, 10_000, 64, Divider{1406, 262144, MaxDenominator}, false, false},
		{"just below 500kHz", 2, 499_999, 2, Divider{900, 1887, MaxDenominator}, false, false},
		{"250kHz", 3, 250_000, 2, Integer(1800), true, false},
		{"500kHz", 4, 500_000, 1, Integer(1800), true, false},
		{"odd integer", 5, 100_000_000, 1, Integer(9), false, false},
		{"divide by 6", 0, 150_000_000, 1, Integer(6), true, false},
		{"160MHz snaps to 6", 0, 160_000_000, 1, Integer(6), true, true},
		{"120MHz snaps to 8", 1, 120_000_000, 1, Integer(8), true, true},
		{"channel 6 rounds 7.3 up to 8", 6, 123_287_671, 1, Integer(8), true, true},
		{"channel 7 rounds 6.9 down to 6", 7, 130_434_783, 1, Integer(6), true, true},
		{"channel 7 exact", 7, 10_000_000, 1, Integer(90), true, false},
		{"channel 6 too slow", 6, 1_000_000, 1, Integer(254), true, true},
		{"channel 6 with R", 6, 8_000, 64, Integer(254), true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PlanOutput(tt.channel, tt.f, pll, FixedDenominator)
			if err != nil {
				t.Fatalf("PlanOutput: %v", err)
			}
			if p.R != tt.r || p.Multisynth != tt.ms || p.IntegerMode != tt.integer || p.Approximate != tt.approximate {
				t.Errorf("PlanOutput(%d, %d) = %+v, want R=%d ms=%v int=%v approx=%v",
					tt.channel, tt.f, p, tt.r, tt.ms, tt.integer, tt.approximate)
			}
			checkLegal(t, p)
		})
	}
}

func TestRDivider(t *testing.T) {
	tests := []struct {
		f       uint32
		vco     uint64
		r       uint32
		clamped bool
	}{
		{8_000, VCOMaxHz, 64, false},
		{7_813, VCOMaxHz, 64, false},
		{7_812, VCOMaxHz, 128, false},
		{3_906, VCOMaxHz, 128, true},
		{1_000, VCOMaxHz, 128, true},
		{250_000, VCOMaxHz, 2, false},
		{499_999, VCOMaxHz, 2, false},
		{500_000, VCOMaxHz, 1, false},
		// 1.2GHz / 2048 is above the 500kHz floor
		{300_000, 1_200_000_000, 2, false},
		{290_000, 1_200_000_000, 4, false},
	}
	for _, tt := range tests {
		r, clamped := RDivider(tt.f, tt.vco)
		if r != tt.r || clamped != tt.clamped {
			t.Errorf("RDivider(%d, %d) = %d, %v, want %d, %v", tt.f, tt.vco, r, clamped, tt.r, tt.clamped)
		}
	}
}

func TestReducedDivider(t *testing.T) {
	tests := []struct {
		num, den uint64
		want     uint32
		exact    bool
	}{
		{73, 10, 8, false},
		{69, 10, 6, false},
		{7, 1, 8, false},
		{8, 1, 8, true},
		{3, 1, 6, false},
		{255, 1, 254, false},
		{1000, 1, 254, false},
		{254, 1, 254, true},
	}
	for _, tt := range tests {
		got, exact := ReducedDivider(tt.num, tt.den)
		if got != tt.want || exact != tt.exact {
			t.Errorf("ReducedDivider(%d/%d) = %d, %v, want %d, %v", tt.num, tt.den, got, exact, tt.want, tt.exact)
		}
	}
}

func TestPhaseOffset(t *testing.T) {
	pll := mustPLL(t, FixedDenominator)
	tests := []struct {
		f    uint32
		want uint8
	}{
		{1_000_000, 127},
		{7_500_000, 120},
		{10_000_000, 90},
		{100_000_000, 9},
		{0, 0},
	}
	for _, tt := range tests {
		if got := PhaseOffset(pll, tt.f); got != tt.want {
			t.Errorf("PhaseOffset(%d) = %d, want %d", tt.f, got, tt.want)
		}
	}
}

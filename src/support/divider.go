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
	"fmt"
	"math/big"
	"math/bits"
)

// MaxDenominator is the largest denominator that fits the 20-bit P3 field.
const MaxDenominator = 1<<20 - 1

// Divider is a fractional divider a + b/c as used by both the PLL feedback
// multisynths and the output multisynths. An exact integer has b == 0 and is
// kept with c == 1.
type Divider struct {
	A, B, C uint32
}

// Policy selects how the denominator of a fractional divider is chosen.
type Policy int

const (
	// FixedDenominator always uses c = MaxDenominator and rounds b.
	FixedDenominator Policy = iota
	// BestRational picks whichever of the fixed denominator result and the
	// best continued fraction convergent with c <= MaxDenominator is closer.
	BestRational
)

func (p Policy) String() string {
	switch p {
	case FixedDenominator:
		return "fixed"
	case BestRational:
		return "best"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Integer returns the exact integer divider a.
func Integer(a uint32) Divider {
	return Divider{A: a, C: 1}
}

func (d Divider) IsInteger() bool { return d.B == 0 }

func (d Divider) IsEvenInteger() bool { return d.B == 0 && d.A%2 == 0 }

// Rat returns the exact value of the divider.
func (d Divider) Rat() *big.Rat {
	c := d.C
	if c == 0 {
		c = 1
	}
	r := new(big.Rat).SetFrac64(int64(d.B), int64(c))
	return r.Add(r, new(big.Rat).SetInt64(int64(d.A)))
}

func (d Divider) Float() float64 {
	f, _ := d.Rat().Float64()
	return f
}

func (d Divider) String() string {
	if d.IsInteger() {
		return fmt.Sprintf("%d", d.A)
	}
	return fmt.Sprintf("%d+%d/%d", d.A, d.B, d.C)
}

/*
Approximate finds a + b/c ≈ num/den with c fixed at cMax.

The integer part is exact and the remainder is scaled by cMax and rounded to
the nearest step. All of this is done with a 128 bit intermediate so a 900MHz
numerator times a 20 bit denominator cannot overflow.

If the remainder rounds to zero the result is an exact integer, which means
the tolerance for preferring integer mode is half of one 1/cMax step. If the
remainder rounds all the way up to cMax, the carry goes into a.
*/
func Approximate(num, den uint64, cMax uint32) Divider {
	if den == 0 || cMax == 0 {
		return Divider{}
	}
	a := num / den
	rem := num % den

	// b = round(rem * cMax / den); rem < den so the quotient fits in 64 bits
	hi, lo := bits.Mul64(rem, uint64(cMax))
	lo, carry := bits.Add64(lo, den/2, 0)
	hi += carry
	b, _ := bits.Div64(hi, lo, den)

	switch {
	case b == 0:
		return Integer(uint32(a))
	case b >= uint64(cMax):
		return Integer(uint32(a + 1))
	default:
		return Divider{A: uint32(a), B: uint32(b), C: cMax}
	}
}

// ApproximateBest is like Approximate but also tries the best continued
// fraction convergent with a denominator no larger than cMax and keeps
// whichever of the two is closer to num/den.
func ApproximateBest(num, den uint64, cMax uint32) Divider {
	fixed := Approximate(num, den, cMax)
	if den == 0 || cMax == 0 {
		return fixed
	}
	p, q, _ := NearestFraction(num, den, uint64(cMax))
	if q == 0 {
		return fixed
	}
	best := Divider{A: uint32(p / q), B: uint32(p % q), C: uint32(q)}
	if best.B == 0 {
		best = Integer(best.A)
	}

	target := new(big.Rat).SetFrac(new(big.Int).SetUint64(num), new(big.Int).SetUint64(den))
	if distance(best, target).Cmp(distance(fixed, target)) < 0 {
		return best
	}
	return fixed
}

func approximate(policy Policy, num, den uint64, cMax uint32) Divider {
	if policy == BestRational {
		return ApproximateBest(num, den, cMax)
	}
	return Approximate(num, den, cMax)
}

func distance(d Divider, target *big.Rat) *big.Rat {
	r := d.Rat()
	r.Sub(r, target)
	return r.Abs(r)
}

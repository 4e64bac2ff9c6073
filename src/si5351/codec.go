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

package si5351

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"

	"vfo/src/support"
)

var ErrFieldOverflow = errors.New("si5351: register field overflow")

const (
	maxP1   = 1<<18 - 1
	maxP2   = 1<<20 - 1
	maxP3   = 1<<20 - 1
	maxRDiv = 7

	divBy4Bits = 0x0c

	SourceXtal       = 0
	SourceMultisynth = 3
)

/*
MultisynthParams are the register fields of one 8 byte multisynth block.

	P1 = 128a + floor(128b/c) - 512   18 bits
	P2 = 128b mod c                   20 bits
	P3 = c                            20 bits

RDiv is the exponent of the R divider that follows an output multisynth.
*/
type MultisynthParams struct {
	P1, P2, P3 uint32
	RDiv       uint8
	DivBy4     bool
}

// RExponent converts an R divider of 1, 2, 4 ... 128 into its 3 bit code.
func RExponent(r uint32) (uint8, error) {
	if r == 0 || r&(r-1) != 0 || r > 1<<maxRDiv {
		return 0, fmt.Errorf("%w: R divider %d", ErrFieldOverflow, r)
	}
	return uint8(bits.TrailingZeros32(r)), nil
}

// EncodeDivider turns a + b/c into register fields. An integer part of 4
// with divBy4 set uses the divide by 4 encoding, which has P1 = P2 = 0.
func EncodeDivider(d support.Divider, r uint32, divBy4 bool) (MultisynthParams, error) {
	rExp, err := RExponent(r)
	if err != nil {
		return MultisynthParams{}, err
	}
	if divBy4 {
		if d != support.Integer(4) {
			return MultisynthParams{}, fmt.Errorf("%w: divide by 4 with divider %v", ErrFieldOverflow, d)
		}
		return MultisynthParams{P3: 1, RDiv: rExp, DivBy4: true}, nil
	}
	if d.A < support.MinMultisynth {
		return MultisynthParams{}, fmt.Errorf("%w: divider %v below %d", ErrFieldOverflow, d, support.MinMultisynth)
	}

	p := MultisynthParams{RDiv: rExp}
	if d.B == 0 {
		p.P1 = 128*d.A - 512
		p.P3 = 1
	} else {
		if d.B >= d.C {
			return MultisynthParams{}, fmt.Errorf("%w: divider %v", ErrFieldOverflow, d)
		}
		b128 := 128 * uint64(d.B)
		c := uint64(d.C)
		p1 := 128*uint64(d.A) + b128/c - 512
		if p1 > maxP1 {
			return MultisynthParams{}, fmt.Errorf("%w: P1 = %d", ErrFieldOverflow, p1)
		}
		p.P1 = uint32(p1)
		p.P2 = uint32(b128 % c)
		p.P3 = d.C
	}
	return p, p.check()
}

func (p MultisynthParams) check() error {
	switch {
	case p.P1 > maxP1:
		return fmt.Errorf("%w: P1 = %d", ErrFieldOverflow, p.P1)
	case p.P2 > maxP2:
		return fmt.Errorf("%w: P2 = %d", ErrFieldOverflow, p.P2)
	case p.P3 > maxP3 || p.P3 == 0:
		return fmt.Errorf("%w: P3 = %d", ErrFieldOverflow, p.P3)
	case p.RDiv > maxRDiv:
		return fmt.Errorf("%w: R exponent %d", ErrFieldOverflow, p.RDiv)
	}
	return nil
}

// Pack lays the fields out as registers base+0 .. base+7.
func (p MultisynthParams) Pack() ([multisynthLen]byte, error) {
	var b [multisynthLen]byte
	if err := p.check(); err != nil {
		return b, err
	}
	b[0] = byte(p.P3 >> 8)
	b[1] = byte(p.P3)
	b[2] = p.RDiv<<4 | byte(p.P1>>16)&0x03
	if p.DivBy4 {
		b[2] |= divBy4Bits
	}
	b[3] = byte(p.P1 >> 8)
	b[4] = byte(p.P1)
	b[5] = byte(p.P3>>16)<<4 | byte(p.P2>>16)&0x0f
	b[6] = byte(p.P2 >> 8)
	b[7] = byte(p.P2)
	return b, nil
}

func UnpackMultisynth(b []byte) MultisynthParams {
	_ = b[multisynthLen-1]
	return MultisynthParams{
		P1:     uint32(b[2]&0x03)<<16 | uint32(b[3])<<8 | uint32(b[4]),
		P2:     uint32(b[5]&0x0f)<<16 | uint32(b[6])<<8 | uint32(b[7]),
		P3:     uint32(b[5]>>4)<<16 | uint32(b[0])<<8 | uint32(b[1]),
		RDiv:   b[2] >> 4 & 0x07,
		DivBy4: b[2]&divBy4Bits == divBy4Bits,
	}
}

// Ratio is the division ratio the fields describe, ignoring R.
func (p MultisynthParams) Ratio() *big.Rat {
	if p.DivBy4 {
		return big.NewRat(4, 1)
	}
	if p.P3 == 0 {
		return new(big.Rat)
	}
	num := (uint64(p.P1)+512)*uint64(p.P3) + uint64(p.P2)
	return new(big.Rat).SetFrac(new(big.Int).SetUint64(num), new(big.Int).SetUint64(128*uint64(p.P3)))
}

// Control is one of the clock control bytes, registers 16-23.
type Control struct {
	Drive     Drive
	Source    uint8
	Invert    bool
	PLLB      bool
	Integer   bool
	PowerDown bool
}

func (c Control) Pack() byte {
	b := byte(c.Drive)&ctrlDriveMask | c.Source<<ctrlSourceLow&ctrlSourceMask
	if c.Invert {
		b |= ctrlInvert
	}
	if c.PLLB {
		b |= ctrlPLLB
	}
	if c.Integer {
		b |= ctrlInteger
	}
	if c.PowerDown {
		b |= ctrlPowerDown
	}
	return b
}

func UnpackControl(b byte) Control {
	return Control{
		Drive:     Drive(b & ctrlDriveMask),
		Source:    (b & ctrlSourceMask) >> ctrlSourceLow,
		Invert:    b&ctrlInvert != 0,
		PLLB:      b&ctrlPLLB != 0,
		Integer:   b&ctrlInteger != 0,
		PowerDown: b&ctrlPowerDown != 0,
	}
}

// EncodeReduced is the single divider byte of CLK6 or CLK7.
func EncodeReduced(n uint32) (byte, error) {
	if n%2 != 0 || n < support.MinReducedDivider || n > support.MaxReducedDivider {
		return 0, fmt.Errorf("%w: channel 6/7 divider %d", ErrFieldOverflow, n)
	}
	return byte(n), nil
}

// PackR67 builds register 92: R6 in bits 2:0, R7 in bits 6:4.
func PackR67(r6, r7 uint8) byte {
	return r6&maxRDiv | (r7&maxRDiv)<<4
}

func UnpackR67(b byte) (r6, r7 uint8) {
	return b & maxRDiv, b >> 4 & maxRDiv
}

func EncodePhase(v uint8) (byte, error) {
	if v > support.MaxPhaseOffset {
		return 0, fmt.Errorf("%w: phase %d", ErrFieldOverflow, v)
	}
	return v, nil
}

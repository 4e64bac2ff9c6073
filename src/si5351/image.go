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
	"fmt"
	"math/big"

	"github.com/sigurn/crc16"

	"vfo/src/support"
)

// Image is the full register file of the chip as the engine believes it to be.
type Image [256]byte

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// Checksum fingerprints the registers the engine owns.
func (img *Image) Checksum() uint16 {
	var owned []byte
	for _, r := range ownedRanges {
		owned = append(owned, img[r.addr:int(r.addr)+r.n]...)
	}
	return crc16.Checksum(owned, crcTable)
}

// OutputFrequency decodes the registers of one channel back into the exact
// frequency it produces, in Hz.
func (img *Image) OutputFrequency(channel uint8) (*big.Rat, error) {
	if channel >= numChannels {
		return nil, fmt.Errorf("si5351: channel %d: %w", channel, ErrOutOfRange)
	}
	regs := channelTable[channel]
	ctrl := UnpackControl(img[regs.control])
	if ctrl.PowerDown || img[regOutputDisable]&(1<<channel) != 0 {
		return nil, fmt.Errorf("si5351: CLK%d: %w", channel, ErrDisabled)
	}

	pll := pllTable[PLLA]
	if ctrl.PLLB {
		pll = pllTable[PLLB]
	}
	feedback := UnpackMultisynth(img[pll.feedback:])
	if feedback.P3 == 0 {
		return nil, fmt.Errorf("si5351: CLK%d: PLL not configured", channel)
	}
	f := new(big.Rat).SetInt64(support.ReferenceHz)
	f.Mul(f, feedback.Ratio())

	var div *big.Rat
	var rExp uint8
	if regs.reduced {
		n := img[regs.multisynth]
		if n == 0 {
			return nil, fmt.Errorf("si5351: CLK%d: divider not configured", channel)
		}
		div = new(big.Rat).SetInt64(int64(n))
		r6, r7 := UnpackR67(img[regR67])
		rExp = r6
		if channel == 7 {
			rExp = r7
		}
	} else {
		ms := UnpackMultisynth(img[regs.multisynth:])
		if ms.P3 == 0 {
			return nil, fmt.Errorf("si5351: CLK%d: divider not configured", channel)
		}
		div = ms.Ratio()
		rExp = ms.RDiv
	}
	div.Mul(div, new(big.Rat).SetInt64(1<<rExp))
	return f.Quo(f, div), nil
}

// render derives the register image from the engine state. It is the only
// place register contents are decided.
func (e *Engine) render() (Image, error) {
	var img Image

	for i := range e.channels {
		ch := &e.channels[i]
		regs := channelTable[i]
		if !ch.Enabled {
			img[regOutputDisable] |= 1 << i
		}

		ctrl := Control{
			Drive:     ch.Drive,
			Source:    SourceMultisynth,
			Invert:    ch.Invert,
			PLLB:      ch.PLL == PLLB,
			Integer:   ch.IntegerMode,
			PowerDown: !ch.Enabled,
		}
		if regs.reduced {
			// bit 6 here is the integer bit of a PLL, not of this channel
			ctrl.Integer = e.plls[i-support.FirstReducedChannel].IntegerMode
		}
		img[regs.control] = ctrl.Pack()

		if !ch.planned() {
			continue
		}
		if regs.reduced {
			n, err := EncodeReduced(ch.Divider.A)
			if err != nil {
				return img, err
			}
			img[regs.multisynth] = n
			continue
		}
		p, err := EncodeDivider(ch.Divider, ch.R, ch.DivBy4)
		if err != nil {
			return img, err
		}
		b, err := p.Pack()
		if err != nil {
			return img, err
		}
		copy(img[regs.multisynth:], b[:])
		if img[regs.phase], err = EncodePhase(ch.Phase); err != nil {
			return img, err
		}
	}

	var rExp [2]uint8
	for i := support.FirstReducedChannel; i < numChannels; i++ {
		if ch := e.channels[i]; ch.planned() {
			exp, err := RExponent(ch.R)
			if err != nil {
				return img, err
			}
			rExp[i-support.FirstReducedChannel] = exp
		}
	}
	img[regR67] = PackR67(rExp[0], rExp[1])

	for i := range e.plls {
		pll := &e.plls[i]
		if !pll.Configured {
			continue
		}
		p, err := EncodeDivider(pll.Divider, 1, pll.DivBy4)
		if err != nil {
			return img, err
		}
		b, err := p.Pack()
		if err != nil {
			return img, err
		}
		copy(img[pllTable[i].feedback:], b[:])
	}

	if e.initialized {
		img[regPLLSource] = pllSourceXtal
		img[regCrystalLoad] = crystalLoad10pF
		img[regFanout] = fanoutXO | fanoutMS
	}
	return img, nil
}

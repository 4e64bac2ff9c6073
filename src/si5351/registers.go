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

// Register addresses from AN619.
const (
	regOutputDisable = 3
	regPLLSource     = 15
	regControl0      = 16
	regMSNA          = 26
	regMSNB          = 34
	regMS0           = 42
	regMS6           = 90
	regMS7           = 91
	regR67           = 92
	regPhase0        = 165
	regPLLReset      = 177
	regCrystalLoad   = 183
	regFanout        = 187

	multisynthLen = 8
)

// Control byte bits, registers 16-23.
const (
	ctrlDriveMask  = 0x03
	ctrlSourceMask = 0x0c
	ctrlSourceLow  = 2
	ctrlInvert     = 1 << 4
	ctrlPLLB       = 1 << 5
	ctrlInteger    = 1 << 6
	ctrlPowerDown  = 1 << 7

	// bit 6 of the CLK6 and CLK7 control bytes is FBA_INT and FBB_INT
	ctrlFeedbackInteger = ctrlInteger
)

const (
	resetPLLA = 1 << 5
	resetPLLB = 1 << 7

	// 10pF, the low six bits are reserved and must read 010010
	crystalLoad10pF = 0xc0 | 0x12

	fanoutXO = 1 << 6
	fanoutMS = 1 << 4

	// both PLLs run from the crystal
	pllSourceXtal = 0x00
)

// channelRegs locates everything belonging to one output.
type channelRegs struct {
	control    uint8
	multisynth uint8 // 8 byte block for 0-5, the single P1 byte for 6 and 7
	phase      uint8
	reduced    bool
}

var channelTable = [numChannels]channelRegs{
	{control: 16, multisynth: 42, phase: 165},
	{control: 17, multisynth: 50, phase: 166},
	{control: 18, multisynth: 58, phase: 167},
	{control: 19, multisynth: 66, phase: 168},
	{control: 20, multisynth: 74, phase: 169},
	{control: 21, multisynth: 82, phase: 170},
	{control: 22, multisynth: regMS6, reduced: true},
	{control: 23, multisynth: regMS7, reduced: true},
}

type pllRegs struct {
	feedback uint8
	// control register whose bit 6 is this PLL's integer mode bit
	intControl uint8
	reset      uint8
}

var pllTable = [numPLLs]pllRegs{
	{feedback: regMSNA, intControl: 22, reset: resetPLLA},
	{feedback: regMSNB, intControl: 23, reset: resetPLLB},
}

// ownedRanges are the registers the engine writes and can verify. The PLL
// reset register is a strobe and is not included.
var ownedRanges = []struct {
	addr uint8
	n    int
}{
	{regOutputDisable, 1},
	{regPLLSource, 9},               // 15, then the control bytes 16-23
	{regMSNA, regR67 - regMSNA + 1}, // feedback, output multisynths and R6/R7
	{regPhase0, 6},                  // CLK0-5 phase
	{regCrystalLoad, 1},
	{regFanout, 1},
}

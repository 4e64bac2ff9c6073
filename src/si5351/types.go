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

	"vfo/src/support"
)

const (
	numChannels = support.NumChannels
	numPLLs     = 2
)

type PLL uint8

const (
	PLLA PLL = iota
	PLLB
)

func (p PLL) String() string {
	switch p {
	case PLLA:
		return "A"
	case PLLB:
		return "B"
	default:
		return fmt.Sprintf("PLL(%d)", uint8(p))
	}
}

// Drive is the output driver strength, the low two bits of the control byte.
type Drive uint8

const (
	Drive2mA Drive = iota
	Drive4mA
	Drive6mA
	Drive8mA
)

func (d Drive) String() string {
	if d > Drive8mA {
		return fmt.Sprintf("Drive(%d)", uint8(d))
	}
	return fmt.Sprintf("%dmA", 2*(int(d)+1))
}

// PLLState is what the engine last programmed into one PLL.
type PLLState struct {
	PLL         PLL
	Divider     support.Divider
	DivBy4      bool
	IntegerMode bool
	VCO         float64 // Hz
	Configured  bool

	plan support.PLLPlan
}

// OutputChannel is what the engine last programmed into one output.
type OutputChannel struct {
	Index       uint8
	Enabled     bool
	PLL         PLL
	Freq        uint32 // requested, Hz
	R           uint32
	Divider     support.Divider
	DivBy4      bool
	IntegerMode bool
	Drive       Drive
	Invert      bool
	Phase       uint8
	Approximate bool
}

func (c OutputChannel) planned() bool {
	return c.R != 0
}

func (c OutputChannel) String() string {
	if !c.Enabled {
		return fmt.Sprintf("CLK%d off", c.Index)
	}
	s := fmt.Sprintf("CLK%d %dHz PLL%v ms=%v r=%d %v", c.Index, c.Freq, c.PLL, c.Divider, c.R, c.Drive)
	if c.IntegerMode {
		s += " int"
	}
	if c.Invert {
		s += " inv"
	}
	if c.Phase != 0 {
		s += fmt.Sprintf(" phase=%d", c.Phase)
	}
	if c.Approximate {
		s += " approx"
	}
	return s
}

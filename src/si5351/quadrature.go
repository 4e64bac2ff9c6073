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

// SetQuadrature puts CLK0 and CLK1 on the same frequency with CLK1 a quarter
// period behind CLK0, or ahead of it when invertPhase is set.
func (e *Engine) SetQuadrature(hz uint32, invertPhase bool) error {
	return e.ConfigureQuadrature(0, 1, hz, invertPhase)
}

/*
ConfigureQuadrature drives two outputs from one PLL at the same frequency
with a 90 degree phase difference. Zero disables both.

The phase register counts quarter periods of the VCO, so the offset for a
quarter period of the output is vco/hz. That only fits 7 bits down to about
vco/127, which is 7.1MHz at 900MHz; below that the offset is clamped and the
phase difference is less than 90 degrees.

Both channels end up in fractional mode whatever the divider is because the
phase offset is ignored in integer mode. The PLL is reset once more at the end
so both multisynths start together and the offset takes effect.
*/
func (e *Engine) ConfigureQuadrature(a, b uint8, hz uint32, invertPhase bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range []uint8{a, b} {
		if ch >= support.FirstReducedChannel {
			return fmt.Errorf("si5351: CLK%d has no phase offset: %w", ch, ErrOutOfRange)
		}
	}
	if a == b {
		return fmt.Errorf("si5351: quadrature needs two outputs, got CLK%d twice: %w", a, ErrOutOfRange)
	}
	if hz == 0 {
		if err := e.disable(a); err != nil {
			return err
		}
		return e.disable(b)
	}

	pll, err := support.PlanPLL(e.vco, e.policy)
	if err != nil {
		return err
	}
	outA, err := support.PlanOutput(a, hz, pll, e.policy)
	if err != nil {
		return fmt.Errorf("si5351: quadrature %dHz: %w", hz, err)
	}
	outB, err := support.PlanOutput(b, hz, pll, e.policy)
	if err != nil {
		return fmt.Errorf("si5351: quadrature %dHz: %w", hz, err)
	}

	shared := e.channels[a].PLL
	e.channels[b].PLL = shared
	e.setPLL(shared, pll)
	if err := e.configurePLL(shared); err != nil {
		return err
	}
	if err := e.configureChannel(outA); err != nil {
		return err
	}
	if err := e.configureChannel(outB); err != nil {
		return err
	}

	lead, lag := &e.channels[a], &e.channels[b]
	if invertPhase {
		lead, lag = lag, lead
	}
	lead.Phase = 0
	lag.Phase = support.PhaseOffset(pll, hz)
	lead.IntegerMode = false
	lag.IntegerMode = false

	img, err := e.render()
	if err != nil {
		return err
	}
	for _, ch := range []uint8{a, b} {
		regs := channelTable[ch]
		if err := e.write(&img, int(regs.phase), 1); err != nil {
			return err
		}
		if err := e.write(&img, int(regs.control), 1); err != nil {
			return err
		}
	}
	if err := e.resetPLL(shared); err != nil {
		return err
	}
	e.print("debug", "si5351: quadrature CLK", a, "/CLK", b, " ", hz, "Hz, offset ", lag.Phase)
	return nil
}

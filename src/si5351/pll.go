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

import "vfo/src/support"

/*
configurePLL programs the feedback divider of pll from its state and resets
it. Planning the PLL at e.vco is left to the caller via setPLL; if that has
not happened yet it is done here.

The write order is the integer mode bit, the 8 feedback registers, and then
the soft reset so the PLL relocks on the new ratio. The reset must never be
skipped after the feedback divider changes.
*/
func (e *Engine) configurePLL(pll PLL) error {
	if e.plls[pll].Divider.C == 0 {
		plan, err := support.PlanPLL(e.vco, e.policy)
		if err != nil {
			return err
		}
		e.setPLL(pll, plan)
	}
	state := &e.plls[pll]
	state.Configured = true
	regs := pllTable[pll]

	img, err := e.render()
	if err != nil {
		return err
	}
	if err := e.write(&img, int(regs.intControl), 1); err != nil {
		return err
	}
	if err := e.write(&img, int(regs.feedback), multisynthLen); err != nil {
		return err
	}
	if err := e.resetPLL(pll); err != nil {
		return err
	}
	e.print("debug", "si5351: PLL", pll, " feedback ", state.Divider, " VCO ", state.VCO, "Hz")
	return nil
}

func (e *Engine) resetPLL(pll PLL) error {
	return e.bus.WriteBlock(regPLLReset, []byte{pllTable[pll].reset})
}

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
	"math/big"

	"vfo/src/support"
)

/*
configureChannel programs one output from a plan.

The divider goes first, then the phase, then the control byte with the power
down bit cleared. The output disable bit is cleared last so the output only
comes on once everything behind it is set up.
*/
func (e *Engine) configureChannel(out support.OutputPlan) error {
	ch := &e.channels[out.Channel]
	ch.Enabled = true
	ch.Freq = out.Freq
	ch.R = out.R
	ch.Divider = out.Multisynth
	ch.DivBy4 = out.DivBy4
	ch.IntegerMode = out.IntegerMode
	ch.Approximate = out.Approximate
	ch.Phase = 0

	regs := channelTable[out.Channel]
	img, err := e.render()
	if err != nil {
		return err
	}
	if regs.reduced {
		if err := e.write(&img, int(regs.multisynth), 1); err != nil {
			return err
		}
		if err := e.write(&img, regR67, 1); err != nil {
			return err
		}
	} else {
		if err := e.write(&img, int(regs.multisynth), multisynthLen); err != nil {
			return err
		}
		if err := e.write(&img, int(regs.phase), 1); err != nil {
			return err
		}
	}
	if err := e.write(&img, int(regs.control), 1); err != nil {
		return err
	}
	if err := e.write(&img, regOutputDisable, 1); err != nil {
		return err
	}

	if out.Approximate {
		got, _ := img.OutputFrequency(out.Channel)
		e.print("warn", "si5351: CLK", out.Channel, " asked for ", out.Freq, "Hz, got ", ratString(got), "Hz")
	}
	e.print("debug", "si5351: ", *ch)
	return nil
}

// disable turns the output driver off and then powers down the stage. The
// divider is left alone.
func (e *Engine) disable(channel uint8) error {
	ch := &e.channels[channel]
	ch.Enabled = false

	img, err := e.render()
	if err != nil {
		return err
	}
	if err := e.write(&img, regOutputDisable, 1); err != nil {
		return err
	}
	if err := e.write(&img, int(channelTable[channel].control), 1); err != nil {
		return err
	}
	e.print("debug", "si5351: CLK", channel, " off")
	return nil
}

func ratString(r *big.Rat) string {
	if r == nil {
		return "?"
	}
	return r.FloatString(3)
}

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

package regbus

import (
	"periph.io/x/conn/v3/i2c"
)

// Periph drives the chip through any periph.io I2C bus.
type Periph struct {
	dev i2c.Dev
}

func NewPeriph(bus i2c.Bus, addr uint16) *Periph {
	return &Periph{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (p *Periph) WriteBlock(addr uint8, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, addr)
	return p.dev.Tx(append(w, data...), nil)
}

func (p *Periph) ReadBlock(addr uint8, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := p.dev.Tx([]byte{addr}, r); err != nil {
		return nil, err
	}
	return r, nil
}

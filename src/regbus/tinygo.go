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
	"fmt"

	chiefsi5351 "github.com/chiefMarlin/tinygo-drivers/si5351"
	"tinygo.org/x/drivers"
)

// DefaultAddress is the 7 bit address of an Si5351A with the ADDR pin low.
const DefaultAddress = 0x60

// TinyGo talks to the chip through a TinyGo I2C peripheral such as
// machine.I2C0. Each block is a single transaction starting with the
// register address.
type TinyGo struct {
	bus  drivers.I2C
	addr uint16
	buf  []byte
}

func NewTinyGo(bus drivers.I2C, addr uint16) *TinyGo {
	return &TinyGo{bus: bus, addr: addr}
}

func (t *TinyGo) WriteBlock(addr uint8, data []byte) error {
	t.buf = append(t.buf[:0], addr)
	t.buf = append(t.buf, data...)
	return t.bus.Tx(t.addr, t.buf, nil)
}

func (t *TinyGo) ReadBlock(addr uint8, n int) ([]byte, error) {
	r := make([]byte, n)
	if err := t.bus.Tx(t.addr, []byte{addr}, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Connected checks that something answers at the Si5351 address and has
// finished its power on initialization.
func Connected(bus drivers.I2C) (bool, error) {
	dev := chiefsi5351.New(bus)
	return dev.Connected()
}

// OpenTinyGo probes for the chip before handing out a bus for it.
func OpenTinyGo(bus drivers.I2C) (*TinyGo, error) {
	ok, err := Connected(bus)
	if err != nil {
		return nil, fmt.Errorf("regbus: probing si5351: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("regbus: no si5351 at %#x", DefaultAddress)
	}
	return NewTinyGo(bus, DefaultAddress), nil
}

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

//go:build linux

package regbus

import (
	"fmt"

	"github.com/platinasystems/i2c"
)

// Linux uses /dev/i2c-N with SMBus I2C block transfers, which carry at most
// 32 bytes, so longer blocks are split.
type Linux struct {
	index int
	addr  int
}

func NewLinux(index, addr int) *Linux {
	return &Linux{index: index, addr: addr}
}

func (l *Linux) do(f func(bus *i2c.Bus) error) (err error) {
	var bus i2c.Bus
	if err = bus.Open(l.index); err != nil {
		return
	}
	defer bus.Close()
	if err = bus.ForceSlaveAddress(l.addr); err != nil {
		return
	}
	return f(&bus)
}

func (l *Linux) WriteBlock(addr uint8, data []byte) error {
	return l.do(func(bus *i2c.Bus) error {
		for off := 0; off < len(data); off += i2c.BlockMax {
			chunk := data[off:min(off+i2c.BlockMax, len(data))]
			var sd i2c.SMBusData
			sd[0] = byte(len(chunk))
			copy(sd[1:], chunk)
			if err := bus.Do(i2c.Write, addr+uint8(off), i2c.I2CBlockData, &sd); err != nil {
				return fmt.Errorf("regbus: i2c-%d write at %d: %w", l.index, int(addr)+off, err)
			}
		}
		return nil
	})
}

func (l *Linux) ReadBlock(addr uint8, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	err := l.do(func(bus *i2c.Bus) error {
		for off := 0; off < n; off += i2c.BlockMax {
			size := min(i2c.BlockMax, n-off)
			var sd i2c.SMBusData
			sd[0] = byte(size)
			if err := bus.Do(i2c.Read, addr+uint8(off), i2c.I2CBlockData, &sd); err != nil {
				return fmt.Errorf("regbus: i2c-%d read at %d: %w", l.index, int(addr)+off, err)
			}
			out = append(out, sd[1:1+size]...)
		}
		return nil
	})
	return out, err
}

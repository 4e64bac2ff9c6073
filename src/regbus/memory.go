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

/*
Package regbus has the ways to get register blocks to and from an Si5351:
an in-memory register file for simulation and tests, TinyGo I2C drivers,
Linux /dev/i2c-N, and a retrying wrapper around any of them.
*/
package regbus

import (
	"errors"
	"fmt"
	"sync"
)

// Bus is the block interface every implementation here provides.
type Bus interface {
	WriteBlock(addr uint8, data []byte) error
	ReadBlock(addr uint8, n int) ([]byte, error)
}

var ErrInjected = errors.New("regbus: injected failure")

type Write struct {
	Addr uint8
	Data []byte
}

/*
Memory is a 256 register file. Every write is logged in order, which is what
the tests use to check write sequences.

FailAt makes the n-th write from now fail with ErrInjected (1 is the next
write, 0 never fails). FailReads makes every read fail.
*/
type Memory struct {
	mu        sync.Mutex
	Regs      [256]byte
	Writes    []Write
	Reads     int
	FailAt    int
	FailReads bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteBlock(addr uint8, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAt > 0 {
		m.FailAt--
		if m.FailAt == 0 {
			return ErrInjected
		}
	}
	if int(addr)+len(data) > len(m.Regs) {
		return fmt.Errorf("regbus: write of %d bytes at %d runs off the end", len(data), addr)
	}
	copy(m.Regs[addr:], data)
	m.Writes = append(m.Writes, Write{Addr: addr, Data: append([]byte(nil), data...)})
	return nil
}

func (m *Memory) ReadBlock(addr uint8, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reads++
	if m.FailReads {
		return nil, ErrInjected
	}
	if n < 0 || int(addr)+n > len(m.Regs) {
		return nil, fmt.Errorf("regbus: read of %d bytes at %d runs off the end", n, addr)
	}
	return append([]byte(nil), m.Regs[addr:int(addr)+n]...), nil
}

// Reset forgets the write log.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Writes = nil
	m.Reads = 0
}

// Written reports whether any logged write touched addr.
func (m *Memory) Written(addr uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.Writes {
		if addr >= w.Addr && int(addr) < int(w.Addr)+len(w.Data) {
			return true
		}
	}
	return false
}

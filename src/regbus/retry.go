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
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/log"
)

/*
Retry repeats failed transfers on an underlying bus with exponential backoff.
The engine itself never retries, so this is where a flaky cable gets
absorbed. Writes of the same registers are idempotent so repeating a
partially completed block is safe.
*/
type Retry struct {
	Bus      Bus
	Attempts int
	Backoff  backoff.Backoff
	// Sleep is time.Sleep unless a test replaces it.
	Sleep func(time.Duration)
}

func NewRetry(bus Bus, attempts int) *Retry {
	return &Retry{
		Bus:      bus,
		Attempts: attempts,
		Backoff: backoff.Backoff{
			Min:    2 * time.Millisecond,
			Max:    100 * time.Millisecond,
			Factor: 2,
			Jitter: false,
		},
		Sleep: time.Sleep,
	}
}

func (r *Retry) WriteBlock(addr uint8, data []byte) error {
	return r.do("write", addr, func() error {
		return r.Bus.WriteBlock(addr, data)
	})
}

func (r *Retry) ReadBlock(addr uint8, n int) (b []byte, err error) {
	err = r.do("read", addr, func() (err error) {
		b, err = r.Bus.ReadBlock(addr, n)
		return
	})
	return
}

func (r *Retry) do(op string, addr uint8, f func() error) error {
	defer r.Backoff.Reset()
	var err error
	for i := 0; ; i++ {
		if err = f(); err == nil {
			if i > 0 {
				log.Print("regbus: ", op, " at ", addr, " #retries: ", i)
			}
			return nil
		}
		if i+1 >= r.Attempts {
			return err
		}
		r.Sleep(r.Backoff.Duration())
	}
}

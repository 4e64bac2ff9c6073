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

//go:build !linux

package regbus

import "errors"

var errNoLinux = errors.New("regbus: /dev/i2c-N is only available on linux")

type Linux struct{}

func NewLinux(index, addr int) *Linux {
	return &Linux{}
}

func (l *Linux) WriteBlock(addr uint8, data []byte) error { return errNoLinux }

func (l *Linux) ReadBlock(addr uint8, n int) ([]byte, error) { return nil, errNoLinux }

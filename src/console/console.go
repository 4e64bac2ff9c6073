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

// Package console is the line oriented command interpreter for the VFO.
package console

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"periph.io/x/conn/v3/physic"

	"vfo/src/si5351"
)

var ErrUsage = errors.New("usage")

type command struct {
	usage string
	help  string
	run   func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"freq":   {"freq FREQ [CLK]", "set an output, 0 turns it off", (*Console).freq},
		"off":    {"off CLK", "turn an output off", (*Console).off},
		"drive":  {"drive 0-3|2mA-8mA [CLK]", "set output drive strength", (*Console).drive},
		"quad":   {"quad [-invert] [-a CLK] [-b CLK] FREQ", "two outputs 90 degrees apart", (*Console).quad},
		"invert": {"invert CLK on|off", "invert an output", (*Console).invert},
		"pll":    {"pll CLK A|B", "choose the PLL for an output", (*Console).pll},
		"init":   {"init", "reset the chip to all outputs off", (*Console).initialize},
		"dump":   {"dump", "read back every register", (*Console).dump},
		"verify": {"verify", "compare the chip with what was written", (*Console).verify},
		"status": {"status", "show PLLs and outputs", (*Console).status},
		"help":   {"help", "this list", (*Console).help},
	}
}

type Console struct {
	eng *si5351.Engine
	out io.Writer
}

func New(eng *si5351.Engine, out io.Writer) *Console {
	return &Console{eng: eng, out: out}
}

// Exec splits a line the way a shell would and runs it. Blank lines and
// lines starting with # do nothing.
func (c *Console) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	args, err := shlex.Split(line)
	if err != nil {
		return err
	}
	return c.Run(args)
}

func (c *Console) Run(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%s: command not found, try help", args[0])
	}
	err := cmd.run(c, args[1:])
	if errors.Is(err, ErrUsage) {
		return fmt.Errorf("%w: %s", err, cmd.usage)
	}
	return err
}

func (c *Console) freq(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	hz, err := ParseFrequency(args[0])
	if err != nil {
		return err
	}
	ch, err := channelArg(args[1:])
	if err != nil {
		return err
	}
	if err := c.eng.SetFrequency(ch, hz); err != nil {
		return err
	}
	return c.show(ch)
}

func (c *Console) off(args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	ch, err := channelArg(args)
	if err != nil {
		return err
	}
	return c.eng.SetFrequency(ch, 0)
}

func (c *Console) drive(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return ErrUsage
	}
	level, err := ParseDrive(args[0])
	if err != nil {
		return err
	}
	ch, err := channelArg(args[1:])
	if err != nil {
		return err
	}
	return c.eng.SetDriveStrength(ch, level)
}

func (c *Console) quad(args []string) error {
	flag, args := flags.New(args, "-invert")
	parm, args := parms.New(args, "-a", "-b")
	if len(args) != 1 {
		return ErrUsage
	}
	hz, err := ParseFrequency(args[0])
	if err != nil {
		return err
	}
	a, b := uint8(0), uint8(1)
	if s := parm.ByName["-a"]; s != "" {
		if a, err = ParseChannel(s); err != nil {
			return err
		}
	}
	if s := parm.ByName["-b"]; s != "" {
		if b, err = ParseChannel(s); err != nil {
			return err
		}
	}
	if err := c.eng.ConfigureQuadrature(a, b, hz, flag.ByName["-invert"]); err != nil {
		return err
	}
	if hz == 0 {
		return nil
	}
	if err := c.show(a); err != nil {
		return err
	}
	return c.show(b)
}

func (c *Console) invert(args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	ch, err := ParseChannel(args[0])
	if err != nil {
		return err
	}
	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "1", "true":
		on = true
	case "off", "0", "false":
	default:
		return ErrUsage
	}
	return c.eng.SetInvert(ch, on)
}

func (c *Console) pll(args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	ch, err := ParseChannel(args[0])
	if err != nil {
		return err
	}
	var p si5351.PLL
	switch strings.ToUpper(args[1]) {
	case "A":
		p = si5351.PLLA
	case "B":
		p = si5351.PLLB
	default:
		return ErrUsage
	}
	return c.eng.AssignPLL(ch, p)
}

func (c *Console) initialize(args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return c.eng.Initialize()
}

func (c *Console) dump(args []string) error {
	img, err := c.eng.Dump()
	if err != nil {
		return err
	}
	for row := 0; row < len(img); row += 16 {
		fmt.Fprintf(c.out, "%3d:", row)
		for _, b := range img[row : row+16] {
			fmt.Fprintf(c.out, " %02x", b)
		}
		fmt.Fprintln(c.out)
	}
	return nil
}

func (c *Console) verify(args []string) error {
	if err := c.eng.Verify(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *Console) status(args []string) error {
	for _, p := range []si5351.PLL{si5351.PLLA, si5351.PLLB} {
		s, err := c.eng.PLL(p)
		if err != nil {
			return err
		}
		if !s.Configured {
			fmt.Fprintf(c.out, "PLL%v off\n", p)
			continue
		}
		fmt.Fprintf(c.out, "PLL%v %v x%v\n", p, FormatFrequency(s.VCO), s.Divider)
	}
	for ch := uint8(0); ch < 8; ch++ {
		if err := c.show(ch); err != nil {
			return err
		}
	}
	img, err := c.eng.Image()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "policy %v, checksum %04x\n", c.eng.Policy(), img.Checksum())
	return nil
}

func (c *Console) help(args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "%-40s %s\n", commands[name].usage, commands[name].help)
	}
	return nil
}

func (c *Console) show(ch uint8) error {
	state, err := c.eng.Channel(ch)
	if err != nil {
		return err
	}
	if !state.Enabled {
		fmt.Fprintln(c.out, state)
		return nil
	}
	f, err := c.eng.OutputFrequency(ch)
	if err != nil {
		return err
	}
	hz, _ := f.Float64()
	fmt.Fprintf(c.out, "%v -> %s\n", state, FormatFrequency(hz))
	return nil
}

func channelArg(args []string) (uint8, error) {
	if len(args) == 0 {
		return 0, nil
	}
	return ParseChannel(args[0])
}

// ParseChannel accepts 0-7 or CLK0-CLK7.
func ParseChannel(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimPrefix(strings.ToUpper(s), "CLK"), 10, 8)
	if err != nil || n > 7 {
		return 0, fmt.Errorf("%q: not a clock output", s)
	}
	return uint8(n), nil
}

// ParseDrive accepts the register value 0-3 or the current, 2mA to 8mA.
func ParseDrive(s string) (si5351.Drive, error) {
	for d := si5351.Drive2mA; d <= si5351.Drive8mA; d++ {
		if strings.EqualFold(s, d.String()) || s == strconv.Itoa(int(d)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%q: drive must be 0-3 or 2mA, 4mA, 6mA, 8mA", s)
}

/*
ParseFrequency accepts plain hertz ("7040000") or a value with an SI prefix
("7.04MHz", "7.04M", "8k"). The result has to be a whole number of hertz.
*/
func ParseFrequency(s string) (uint32, error) {
	if n, err := strconv.ParseUint(s, 10, 32); err == nil {
		return uint32(n), nil
	}
	v := s
	if !strings.HasSuffix(v, "Hz") {
		v += "Hz"
	}
	var f physic.Frequency
	if err := f.Set(v); err != nil {
		return 0, fmt.Errorf("%q: %v", s, err)
	}
	if f < 0 || f%physic.Hertz != 0 || f/physic.Hertz > 1<<32-1 {
		return 0, fmt.Errorf("%q: not a whole number of hertz", s)
	}
	return uint32(f / physic.Hertz), nil
}

func FormatFrequency(hz float64) string {
	return (physic.Frequency(hz * float64(physic.Hertz))).String()
}

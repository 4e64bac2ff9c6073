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

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/liner"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"

	"vfo/src/console"
	"vfo/src/regbus"
	"vfo/src/si5351"
	"vfo/src/support"
)

const usage = `usage: vfo [-sim] [-v] [-best] [-no-init] [-bus N] [-addr ADDR]
           [-retries N] [-history FILE] [COMMAND [ARGS]...]

With a COMMAND, run it and exit. Otherwise read commands from the terminal;
"help" lists them.`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "vfo:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flag, args := flags.New(args, "-sim", "-v", "-best", "-no-init", "-h", "-help")
	parm, args := parms.New(args, "-bus", "-addr", "-retries", "-history")
	if flag.ByName["-h"] || flag.ByName["-help"] {
		fmt.Println(usage)
		return nil
	}

	var bus si5351.RegisterBus
	if flag.ByName["-sim"] {
		bus = regbus.NewMemory()
	} else {
		index, err := intParm(parm.ByName["-bus"], 1)
		if err != nil {
			return fmt.Errorf("-bus: %w", err)
		}
		addr, err := intParm(parm.ByName["-addr"], regbus.DefaultAddress)
		if err != nil {
			return fmt.Errorf("-addr: %w", err)
		}
		bus = regbus.NewLinux(index, addr)
	}
	retries, err := intParm(parm.ByName["-retries"], 3)
	if err != nil {
		return fmt.Errorf("-retries: %w", err)
	}
	if retries > 1 {
		bus = regbus.NewRetry(bus, retries)
	}

	opts := []si5351.Option{}
	if flag.ByName["-best"] {
		opts = append(opts, si5351.WithPolicy(support.BestRational))
	}
	if flag.ByName["-v"] {
		opts = append(opts, si5351.WithLogger(func(args ...interface{}) {
			log.Print(args...)
			fmt.Fprintln(os.Stderr, args...)
		}))
	}
	eng := si5351.New(bus, opts...)
	if !flag.ByName["-no-init"] {
		if err := eng.Initialize(); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}

	con := console.New(eng, os.Stdout)
	if len(args) > 0 {
		return con.Run(args)
	}
	history := parm.ByName["-history"]
	if history == "" {
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".vfo_history")
		}
	}
	return interact(con, history)
}

func interact(con *console.Console, history string) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(history); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if history == "" {
			return
		}
		if f, err := os.Create(history); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	for {
		s, err := line.Prompt("vfo> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		line.AppendHistory(s)
		if s == "quit" || s == "exit" {
			return nil
		}
		if err := con.Exec(s); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// intParm parses a decimal or 0x prefixed option value.
func intParm(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(s, 0, 32)
	return int(n), err
}

// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/wafel-tas/timeline/editlog"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/timeline"
)

// runShell drives an interactive line-based session against tl, the
// same split program/client/client.go makes between a thin RPC/local
// frontend and a line-oriented command loop, rendered here with
// chzyer/readline instead of a raw os.Pipe reader since tasctl talks to
// a real terminal.
func runShell(tl *timeline.Timeline) error {
	rl, err := readline.New("tasctl> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println(`tasctl interactive shell. Commands:
  get <frame> <symbol> [path]
  set <frame> <symbol> [path] <value>
  clear <frame>
  balance <frame>
  sethotspot <name> <frame>
  deletehotspot <name>
  quit`)

	for {
		line, err := rl.Readline()
		switch {
		case err == readline.ErrInterrupt:
			continue
		case err == io.EOF:
			return nil
		case err != nil:
			return err
		}
		if err := dispatch(tl, line); err != nil {
			if err == io.EOF {
				return nil
			}
			fmt.Println("error:", err)
		}
	}
}

func dispatch(tl *timeline.Timeline, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "quit", "exit":
		return io.EOF
	case "get":
		return cmdGet(tl, fields[1:])
	case "set":
		return cmdSet(tl, fields[1:])
	case "clear":
		return cmdClear(tl, fields[1:])
	case "balance":
		return cmdBalance(tl, fields[1:])
	case "sethotspot":
		return cmdSetHotspot(tl, fields[1:])
	case "deletehotspot":
		return cmdDeleteHotspot(tl, fields[1:])
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

func cmdGet(tl *timeline.Timeline, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: get <frame> <symbol> [path]")
	}
	frame, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	symbol := args[1]
	path := ""
	if len(args) > 2 {
		path = args[2]
	}

	h, err := tl.At(frame)
	if err != nil {
		return err
	}
	defer h.Release()

	base, typ, err := h.Memory().Symbol(symbol)
	if err != nil {
		return err
	}
	dp, err := tl.Compiler().Compile(typ, path)
	if err != nil {
		return err
	}
	v, err := dp.Get(h.Memory(), base)
	if err != nil {
		return err
	}
	fmt.Println(v.String())
	return nil
}

func cmdSet(tl *timeline.Timeline, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: set <frame> <symbol> [path] <value>")
	}
	frame, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	symbol := args[1]
	path := ""
	value := args[2]
	if len(args) > 3 {
		path = args[2]
		value = args[3]
	}

	typ, err := tl.Spec().Global(symbol)
	if err != nil {
		return err
	}
	dp, err := tl.Compiler().Compile(typ.Type, path)
	if err != nil {
		return err
	}

	var v memory.Value
	switch {
	case strings.Contains(value, "."):
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		v = memory.NewFloat(dp.Result, f)
	default:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		v = memory.NewInt(dp.Result, i)
	}

	tl.Edit(frame, editlog.Key{Symbol: symbol, Path: path}, func(m *memory.Memory) error {
		base, _, err := m.Symbol(symbol)
		if err != nil {
			return err
		}
		return dp.Set(m, base, v)
	})
	return nil
}

func cmdClear(tl *timeline.Timeline, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: clear <frame>")
	}
	frame, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	tl.ClearFrame(frame)
	return nil
}

func cmdBalance(tl *timeline.Timeline, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: balance <frame>")
	}
	frame, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	tl.SetHotspot("shell", frame)
	tl.Balance(0)
	return nil
}

func cmdSetHotspot(tl *timeline.Timeline, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: sethotspot <name> <frame>")
	}
	frame, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return err
	}
	tl.SetHotspot(args[0], frame)
	return nil
}

func cmdDeleteHotspot(tl *timeline.Timeline, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: deletehotspot <name>")
	}
	tl.DeleteHotspot(args[0])
	return nil
}

// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The tasctl command drives a timelineserver, either hosting one itself
// (serve) or talking to one already running (get/set/clear/balance),
// an interactive shell over a locally opened timeline (shell), plus
// standalone movie tooling (load/export) that needs no server at all. Its command tree and error-handling style follow
// cmd/viewcore/main.go: print to stderr and os.Exit(1) on any error
// RunE returns, rather than cobra's default (less visible) stack trace.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wafel-tas/timeline/editlog"
	"github.com/wafel-tas/timeline/game/dll"
	"github.com/wafel-tas/timeline/game/synthetic"
	"github.com/wafel-tas/timeline/internal/tasconfig"
	"github.com/wafel-tas/timeline/internal/telemetry"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/movie"
	"github.com/wafel-tas/timeline/slot"
	"github.com/wafel-tas/timeline/timeline"
	"github.com/wafel-tas/timeline/timelineserver"
	"github.com/wafel-tas/timeline/typespec"
	"github.com/wafel-tas/timeline/wafi"
)

var (
	addrFlag   string
	configFlag string
	logFlag    string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tasctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tasctl",
		Short: "tasctl drives a timeline engine for a TAS/tool-assisted-speedrun editor",
	}
	root.PersistentFlags().StringVar(&addrFlag, "addr", "localhost:6417", "timelineserver address")
	root.PersistentFlags().StringVar(&configFlag, "config", "", "project .toml configuration file")
	root.PersistentFlags().StringVar(&logFlag, "log", "", "log file (rotated); stderr if unset")

	root.AddCommand(
		newServeCmd(),
		newShellCmd(),
		newGetCmd(),
		newSetCmd(),
		newClearCmd(),
		newBalanceCmd(),
		newLoadCmd(),
		newExportCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("tasctl (timeline engine CLI)")
		},
	}
}

// setupLogging wires logFlag into telemetry, rotating if a file was
// given, falling back to stderr otherwise.
func setupLogging() (*telemetry.Logger, func(), error) {
	log := telemetry.New("tasctl")
	if logFlag == "" {
		return log, func() {}, nil
	}
	rf, err := telemetry.OpenRotatingFile(logFlag, 10<<20)
	if err != nil {
		return nil, nil, err
	}
	log.SetOutput(rf)
	return log, func() { rf.Close() }, nil
}

func loadProjectConfig() (tasconfig.Config, error) {
	if configFlag == "" {
		return tasconfig.Config{}, fmt.Errorf("--config is required")
	}
	return tasconfig.Load(configFlag)
}

// openGame loads the native library cfg.Game points at. On a platform
// or build without cgo this always fails (game/dll's stub); there is no
// synthetic fallback here because a project config names a real game on
// purpose, unlike `tasctl load` which never had one to begin with.
func openGame(cfg tasconfig.Config) (slot.Game, error) {
	return dll.Open(dll.Config{
		Path:         cfg.Game.Path,
		UpdateSymbol: cfg.Game.UpdateSymbol,
		Sections:     cfg.Game.Sections,
	})
}

// openNativeTimeline opens a project's configured game library and type
// spec and constructs a Timeline over it. Building a typespec.Spec from
// debug info is out of scope for this module (see typespec's package
// doc); for now this always runs against an empty Spec, which is
// enough to drive the slot-cache machinery even before a debug-info
// loader exists.
func openNativeTimeline(cfg tasconfig.Config) (*timeline.Timeline, error) {
	g, err := openGame(cfg)
	if err != nil {
		return nil, err
	}
	spec := typespec.New()
	return timeline.New(timeline.Config{
		Game:     g,
		Spec:     spec,
		Arch:     memory.AMD64,
		Capacity: cfg.Capacity,
	})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "host a timelineserver for the configured project",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := setupLogging()
			if err != nil {
				return err
			}
			defer closeLog()

			cfg, err := loadProjectConfig()
			if err != nil {
				return err
			}
			tl, err := openNativeTimeline(cfg)
			if err != nil {
				return err
			}
			defer tl.Close()

			listen := cfg.Server.Listen
			if listen == "" {
				listen = addrFlag
			}
			log.Infof("serving timeline on %s", listen)
			return timelineserver.Serve(listen, tl)
		},
	}
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "open an interactive session on a local timeline (requires --config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFlag == "" {
				return fmt.Errorf("shell currently requires --config (a local timeline); a remote-only shell is future work")
			}
			cfg, err := loadProjectConfig()
			if err != nil {
				return err
			}
			tl, err := openNativeTimeline(cfg)
			if err != nil {
				return err
			}
			defer tl.Close()
			return runShell(tl)
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <frame> <symbol> [path]",
		Short: "evaluate a data path at a frame against a running timelineserver",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 3 {
				path = args[2]
			}
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			v, err := c.Get(frame, args[1], path)
			if err != nil {
				return err
			}
			fmt.Println(v)
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <frame> <symbol> [path] <value>",
		Short: "record a durable edit against a running timelineserver",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			symbol := args[1]
			path := ""
			value := args[2]
			if len(args) == 4 {
				path = args[2]
				value = args[3]
			}
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			if strings.Contains(value, ".") {
				f, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return err
				}
				return c.SetFloat(frame, symbol, path, f)
			}
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			return c.SetInt(frame, symbol, path, i)
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <frame>",
		Short: "remove every edit recorded at a frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Clear(frame)
		},
	}
}

func newBalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <frame>",
		Short: "rebalance the server's slot cache around an unnamed hotspot frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.SetHotspot("cli", frame); err != nil {
				return err
			}
			return c.Balance(0)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hotspot <name> <frame>",
		Short: "register a named hotspot, then rebalance around every registered hotspot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			frame, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return err
			}
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := c.SetHotspot(name, frame); err != nil {
				return err
			}
			return c.Balance(0)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete-hotspot <name>",
		Short: "remove a previously registered named hotspot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := timelineserver.Dial(addrFlag)
			if err != nil {
				return err
			}
			defer c.Close()
			return c.DeleteHotspot(args[0])
		},
	})
	return cmd
}

// newLoadCmd builds a standalone synthetic-game timeline (no project
// config, no real game) and replays an .m64 or .wafi movie's inputs
// into it as edits, frame by frame, reporting how many frames were
// loaded. It exists to exercise and sanity-check a movie file without
// needing a real native library.
func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <movie.m64|movie.wafi>",
		Short: "replay a movie's inputs into a synthetic-game timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			inputs, err := readInputs(path, f)
			if err != nil {
				return err
			}
			frameInputs := make([]movie.FrameInput, len(inputs))
			for i, in := range inputs {
				frameInputs[i] = movie.FrameInput{Buttons: in.Buttons, StickX: in.StickX, StickY: in.StickY}
			}

			layout := slot.Layout{{Name: "globals", Size: 64}}
			g, err := synthetic.New(layout)
			if err != nil {
				return err
			}
			spec := typespec.New()
			tl, err := timeline.New(timeline.Config{Game: g, Spec: spec, Arch: memory.AMD64, Capacity: 32})
			if err != nil {
				return err
			}
			defer tl.Close()

			u16, err := typespec.NewPrimitive("u16")
			if err != nil {
				return err
			}
			s8, err := typespec.NewPrimitive("s8")
			if err != nil {
				return err
			}
			// The synthetic demo game carries no typespec.Global for
			// gControllerPads, so each movie.ToEdits key is realized
			// against a fixed offset in the "globals" section instead
			// of a compiled datapath.DataPath.
			offsets := map[editlog.Key]struct {
				offset int64
				typ    *typespec.Type
			}{
				movie.ButtonKey: {8, u16},
				movie.StickXKey: {10, s8},
				movie.StickYKey: {11, s8},
			}
			for _, e := range movie.ToEdits(frameInputs) {
				target := offsets[e.Key]
				value := e.Value
				typ := target.typ
				addr := memory.Virt("globals", target.offset)
				tl.Edit(e.Frame, e.Key, func(m *memory.Memory) error {
					if typ.Name == "u16" {
						return m.Write(addr, typ, memory.NewUint(typ, uint64(uint16(value))))
					}
					return m.Write(addr, typ, memory.NewInt(typ, value))
				})
			}
			if len(frameInputs) > 0 {
				h, err := tl.At(int64(len(frameInputs) - 1))
				if err != nil {
					return err
				}
				h.Release()
			}
			fmt.Printf("loaded %d frames from %s\n", len(frameInputs), path)
			return nil
		},
	}
}

// newExportCmd converts a movie between the .m64 and .wafi formats.
func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <wafi|m64> <input-file> <output-file>",
		Short: "convert a movie between the m64 and wafi formats",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, inPath, outPath := args[0], args[1], args[2]
			in, err := os.Open(inPath)
			if err != nil {
				return err
			}
			defer in.Close()
			inputs, err := readInputs(inPath, in)
			if err != nil {
				return err
			}

			out, err := os.Create(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			return writeInputs(format, inputs, out)
		},
	}
}

// readInputs loads a movie's per-frame inputs, choosing the .m64 or
// .wafi decoder by path's extension.
func readInputs(path string, r io.Reader) ([]wafi.Input, error) {
	if strings.HasSuffix(path, ".wafi") {
		doc, err := wafi.Read(r)
		if err != nil {
			return nil, err
		}
		return doc.Inputs, nil
	}
	m, err := movie.Read(r)
	if err != nil {
		return nil, err
	}
	inputs := make([]wafi.Input, len(m.Inputs))
	for i, mi := range m.Inputs {
		inputs[i] = wafi.Input{Buttons: mi.Buttons, StickX: mi.StickX, StickY: mi.StickY}
	}
	return inputs, nil
}

// writeInputs encodes inputs in the named format ("wafi" or "m64").
func writeInputs(format string, inputs []wafi.Input, w io.Writer) error {
	switch format {
	case "wafi":
		return wafi.Write(w, &wafi.Document{Inputs: inputs})
	case "m64":
		m := &movie.Movie{Header: movie.Header{}}
		for _, wi := range inputs {
			m.Inputs = append(m.Inputs, movie.Input{Buttons: wi.Buttons, StickX: wi.StickX, StickY: wi.StickY})
		}
		return movie.Write(w, m)
	default:
		return fmt.Errorf("unknown export format %q (want wafi or m64)", format)
	}
}

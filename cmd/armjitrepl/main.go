/*
Copyright (C) 2024-2026  Carl-Philip Hänsch

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// armjitrepl is an interactive console over a jit.Jit instance: run the
// translator from a guest PC, force an invalidation or a full cache clear,
// request a halt, dump registers and compile stats. It has no command that
// lists the block cache or the patch registry. It carries no guest decoder
// of its own (that remains an external collaborator per spec.md §1) —
// every location compiles to the same trivial one-cycle block that links
// to the next guest word, which is enough to exercise the cache, chaining
// and invalidation machinery without one.
//
// Modeled directly on the teacher's scm/prompt.go Repl function: the same
// prompt coloring, history file, Ctrl-C handling and panic-recovery-per-
// line structure, repurposed to drive this package instead of a Scheme
// evaluator.
package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	units "github.com/docker/go-units"
	"github.com/dc0d/onexit"
	"github.com/google/uuid"

	"github.com/cph-labs/armxlate/jit"
)

const newPrompt = "\033[32marmjit>\033[0m "
const resultPrompt = "\033[31m=\033[0m "

// nopCallbacks answers every HostCallbacks query with a logged default:
// enough to let Run make progress against the trivial blocks this console
// compiles, without needing an embedder's real memory map.
type nopCallbacks struct{}

func (nopCallbacks) MemoryRead8(addr uint64) uint8   { fmt.Printf("  [mem read8  @%#x -> 0]\n", addr); return 0 }
func (nopCallbacks) MemoryRead16(addr uint64) uint16 { fmt.Printf("  [mem read16 @%#x -> 0]\n", addr); return 0 }
func (nopCallbacks) MemoryRead32(addr uint64) uint32 { fmt.Printf("  [mem read32 @%#x -> 0]\n", addr); return 0 }
func (nopCallbacks) MemoryRead64(addr uint64) uint64 { fmt.Printf("  [mem read64 @%#x -> 0]\n", addr); return 0 }

func (nopCallbacks) MemoryWrite8(addr uint64, v uint8)   { fmt.Printf("  [mem write8  @%#x = %#x]\n", addr, v) }
func (nopCallbacks) MemoryWrite16(addr uint64, v uint16) { fmt.Printf("  [mem write16 @%#x = %#x]\n", addr, v) }
func (nopCallbacks) MemoryWrite32(addr uint64, v uint32) { fmt.Printf("  [mem write32 @%#x = %#x]\n", addr, v) }
func (nopCallbacks) MemoryWrite64(addr uint64, v uint64) { fmt.Printf("  [mem write64 @%#x = %#x]\n", addr, v) }

func (nopCallbacks) MemoryReadCode(addr uint64) uint32 { return 0 }

func (nopCallbacks) InterpretInstruction(state *jit.State, count uint32) {
	fmt.Printf("  [interpret %d instruction(s) requested]\n", count)
}

func (nopCallbacks) CallSVC(svc uint32) { fmt.Printf("  [svc %#x]\n", svc) }
func (nopCallbacks) ExceptionRaised(pc uint64, reason jit.ExceptionReason) {
	fmt.Printf("  [exception %s @%#x]\n", reason, pc)
}
func (nopCallbacks) AddTicks(cycles uint64)      {}
func (nopCallbacks) GetTicksRemaining() uint64   { return 0 }

// trivialTranslate stands in for the decoder/IR-builder/optimizer pipeline
// spec.md §1 marks out of scope: every location compiles to a block that
// charges one cycle and links (TermLinkBlock) to the next guest word —
// through the dispatcher until that block is compiled, directly once Patch
// has retargeted the jump — just enough to watch Compile/Patch/Invalidate
// run.
func trivialTranslate(loc jit.Location) *jit.Block {
	next := jit.NewLocation(loc.PC()+4, loc.Mode())
	return &jit.Block{
		Location:   loc,
		Guest:      jit.GuestInterval{First: loc.PC(), Last: loc.PC() + 3},
		Condition:  jit.CondAL,
		CycleCount: 1,
		Terminal: jit.Terminal{
			Kind:   jit.TermLinkBlock,
			Target: next,
		},
	}
}

func main() {
	sessionID := uuid.New()
	fmt.Printf("armjitrepl session %s\n", sessionID)

	j, err := jit.New(jit.Config{
		Callbacks:     nopCallbacks{},
		CodeCacheSize: 1 << 20,
		Translate:     trivialTranslate,
	})
	if err != nil {
		panic(err)
	}
	onexit.Register(func() { fmt.Println("armjitrepl: session", sessionID, "closed") })

	state := &jit.State{CyclesRemaining: 100}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            newPrompt,
		HistoryFile:       ".armjitrepl-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			break
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Println("panic:", r, string(debug.Stack()))
				}
			}()
			runCommand(j, state, line)
		}()
	}
}

func runCommand(j *jit.Jit, state *jit.State, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "run":
		pc := parseHex(fields, 1)
		state.Upcoming = jit.NewLocation(pc, 0)
		reason := j.Run(state)
		fmt.Println(resultPrompt, "exit:", reason, "cycles-remaining:", state.CyclesRemaining)

	case "stats":
		s := j.Stats()
		fmt.Printf("%s blocks-compiled=%d bytes-emitted=%s cache-overflows=%d invalidations=%d cache-clears=%d\n",
			resultPrompt, s.BlocksCompiled, units.HumanSize(float64(s.BytesEmitted)), s.CacheOverflows, s.InvalidationsApplied, s.CacheClears)

	case "invalidate":
		start := parseHex(fields, 1)
		length := parseHex(fields, 2)
		j.InvalidateCacheRange(start, length)
		fmt.Println(resultPrompt, "invalidated", units.HumanSize(float64(length)), "from", fmt.Sprintf("%#x", start))

	case "clear":
		j.ClearCache()
		fmt.Println(resultPrompt, "cache cleared")

	case "halt":
		j.HaltExecution()
		fmt.Println(resultPrompt, "halt requested")

	case "regs":
		regs := j.Regs(state)
		for i, v := range regs[:16] {
			fmt.Printf("  r%-2d = %#018x\n", i, v)
		}

	case "help":
		fmt.Println("commands: run <pc-hex>, stats, invalidate <start-hex> <len-hex>, clear, halt, regs")

	default:
		fmt.Println("unknown command:", fields[0], "(try: help)")
	}
}

func parseHex(fields []string, idx int) uint64 {
	if idx >= len(fields) {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(fields[idx], "0x"), 16, 64)
	if err != nil {
		panic(err)
	}
	return v
}

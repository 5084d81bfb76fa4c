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
package jit

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Tracefile is a Chrome-trace-format event log of
// compile/invalidate/clear-cache activity, opened by New when
// Config.TraceFile is non-empty. Adapted from the teacher's scm/trace.go:
// the JSON-array-of-events shape, the
// leading "[" written up front and trailing "]" written on Close, and the
// isFirst/mutex bookkeeping around each write are kept verbatim. Event's
// signature is narrowed from the teacher's three free-form strings (name,
// category, begin/end/instant phase) to (name, count), since every call
// site in this package logs one instant occurrence plus a scalar — a
// block count erased by an invalidation, a cache-clear's unused slot —
// never a begin/end duration pair.
type Tracefile struct {
	isFirst bool
	file    io.WriteCloser
	m       sync.Mutex
}

// NewTrace wraps an already-opened file as a trace log.
func NewTrace(file io.WriteCloser) *Tracefile {
	file.Write([]byte("["))
	return &Tracefile{file: file, isFirst: true}
}

// Close writes the closing bracket and releases the underlying file. A
// nil *Tracefile is a safe no-op, matching Event below, so New can leave
// Jit.trace nil when Config.TraceFile is empty without every call site
// needing to guard on it.
func (t *Tracefile) Close() {
	if t == nil {
		return
	}
	t.file.Write([]byte("]"))
	t.file.Close()
}

// Event appends one instant event to the trace: name identifies what
// happened ("invalidate", "clear-cache", "compile", ...), count carries
// whatever scalar is relevant to that event (blocks erased, bytes
// emitted) or zero when nothing applies.
func (t *Tracefile) Event(name string, count uint64) {
	if t == nil {
		return
	}
	t.m.Lock()
	defer t.m.Unlock()
	if t.isFirst {
		t.isFirst = false
	} else {
		t.file.Write([]byte(",\n"))
	}
	nameJSON, _ := json.Marshal(name)
	t.file.Write([]byte("{\"name\": "))
	t.file.Write(nameJSON)
	t.file.Write([]byte(", \"cat\": \"jit\", \"ph\": \"i\", \"s\": \"g\", \"ts\": "))
	t.file.Write([]byte(formatInt(time.Since(traceStart).Microseconds())))
	t.file.Write([]byte(", \"pid\": 0, \"tid\": 0, \"args\": {\"count\": "))
	t.file.Write([]byte(formatUint(count)))
	t.file.Write([]byte("}}"))
}

var traceStart = time.Now()

func formatInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func formatUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

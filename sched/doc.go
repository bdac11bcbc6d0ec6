// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package sched bridges the fiber runtime and the reactor event loop.
// Run wires a scheduler into the context, installs the async watcher
// that ferries cross-thread completions into the fill queue, and drives
// fibers with an iterate step that advances the loop one pass at a time.
// The package also provides loop-backed suspensions: Sleep, process
// reaping, and the timer wheel.
package sched

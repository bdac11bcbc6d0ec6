// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package fiber implements the cooperative task layer: write-once ivars
// readable by suspending fibers, a fiber-aware mutex, a task pool, and
// the Run driver that alternates between executing fibers and asking an
// iterate step for the next batch of ivar fills.
//
// Fibers are goroutines serialized through a single gate: exactly one
// fiber (or the iterate step) executes at any moment, so state touched
// only from fibers needs no locking. The gate's channel operations
// order consecutive fiber steps, giving the usual happens-before
// guarantees across the underlying goroutines.
//
// Every suspending operation takes the context.Context handed to the
// fiber's body; the runtime travels inside it.
package fiber

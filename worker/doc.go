// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package worker offloads blocking work from the cooperative runtime
// onto a dedicated OS thread. Completions never touch fiber state
// directly: they are posted through the scheduler's mutex-guarded
// cross-thread queue and the loop's async watcher, and awaiting fibers
// resume on the loop thread.
package worker

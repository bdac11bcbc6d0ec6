// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package stream provides non-blocking descriptor I/O for fibers: a
// reference-counted descriptor watcher with per-direction FIFO wait
// queues, and buffered Reader/Writer types staging bytes in a
// bip-buffer that grows on demand and never shrinks.
package stream

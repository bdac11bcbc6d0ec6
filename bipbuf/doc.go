// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package bipbuf implements a bipartite circular byte buffer: two
// contiguous in-use regions inside a fixed array, supporting contiguous
// reservations without moving data in the steady state. It is the
// staging area underneath the buffered stream Reader and Writer.
package bipbuf

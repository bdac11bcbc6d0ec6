// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package socket provides non-blocking connection establishment and an
// accept server for the fiber runtime. The package works directly on
// file descriptors and sockaddrs; each accepted connection becomes a
// Session handled by a task from the server's pool.
package socket

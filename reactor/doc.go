// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the event loop underneath the cooperative
// runtime: an epoll-based readiness poller plus timer, child-process,
// and async (cross-thread wake) watchers. The loop is single-threaded;
// apart from Async.Send and Loop.Ref/Unref, nothing in this package may
// be called from outside the loop's thread.
//
// A watcher is "active" between Start and Stop (or until it fires, for
// one-shot watchers) and keeps the loop alive: RunOnce reports
// NoMoreActiveWatchers once no active watcher and no external
// reference remain. Async watchers deliberately do not keep the loop
// alive; callers expecting cross-thread completions hold a Ref for the
// duration instead.
package reactor

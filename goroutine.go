// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

import "runtime"

// goroutineID parses the current goroutine's id out of a runtime.Stack
// dump. It is the closest Go analogue to a native thread id, and is used
// only for thread-affinity bookkeeping (the registry, and Queue's
// reentrant-lock ownership check) — never for scheduling decisions.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

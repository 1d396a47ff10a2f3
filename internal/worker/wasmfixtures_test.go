package worker

// Hand-assembled minimal WASM binaries used by executor_test.go to drive a
// real wazero compile+instantiate+run cycle without a guest toolchain.
// Each is a single function, exported as "run" per spec.md §4.5's entry
// point contract.
//
// guestOK / guestFail: ()->i32 returning a constant exit code (0 / 1), no
// imports.
//
// guestTrap: same signature and no imports; its body is a single
// unreachable, so running it traps.
//
// guestNotifySuspend: exports linear memory and imports
// durable:notify/notify#notification-blocking(ptr, capacity) -> written-len,
// calls it once with (0, 0) and discards the result. Used to drive the
// Task Executor into a real suspend (no notification queued) entirely
// through the host plugin's own panic(txn.Suspended), exactly as a real
// guest component would.
//
// guestClockNow: imports wasi:clocks/wall-clock#now() -> i64, calls it
// once and discards the result, then returns 0. Used wherever a test needs
// a guest that performs exactly one regular (Enter-backed, event-journaled)
// host transaction rather than a notify-suspend, so AppendEvent's ownership
// guard is the thing actually exercised.

var guestOK = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x05, 0x01, 0x60,
	0x00, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x72,
	0x75, 0x6e, 0x00, 0x00, 0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x00, 0x0b,
}

var guestFail = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x05, 0x01, 0x60,
	0x00, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x72,
	0x75, 0x6e, 0x00, 0x00, 0x0a, 0x06, 0x01, 0x04, 0x00, 0x41, 0x01, 0x0b,
}

var guestTrap = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x05, 0x01, 0x60,
	0x00, 0x01, 0x7f, 0x03, 0x02, 0x01, 0x00, 0x07, 0x07, 0x01, 0x03, 0x72,
	0x75, 0x6e, 0x00, 0x00, 0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b,
}

var guestNotifySuspend = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x0b, 0x02, 0x60,
	0x00, 0x01, 0x7f, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, 0x02, 0x2f, 0x01,
	0x15, 0x64, 0x75, 0x72, 0x61, 0x62, 0x6c, 0x65, 0x3a, 0x6e, 0x6f, 0x74,
	0x69, 0x66, 0x79, 0x2f, 0x6e, 0x6f, 0x74, 0x69, 0x66, 0x79, 0x15, 0x6e,
	0x6f, 0x74, 0x69, 0x66, 0x69, 0x63, 0x61, 0x74, 0x69, 0x6f, 0x6e, 0x2d,
	0x62, 0x6c, 0x6f, 0x63, 0x6b, 0x69, 0x6e, 0x67, 0x00, 0x01, 0x03, 0x02,
	0x01, 0x00, 0x05, 0x03, 0x01, 0x00, 0x01, 0x07, 0x10, 0x02, 0x03, 0x72,
	0x75, 0x6e, 0x00, 0x01, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72, 0x79, 0x02,
	0x00, 0x0a, 0x0d, 0x01, 0x0b, 0x00, 0x41, 0x00, 0x41, 0x00, 0x10, 0x00,
	0x1a, 0x41, 0x00, 0x0b,
}

var guestClockNow = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x09, 0x02, 0x60,
	0x00, 0x01, 0x7e, 0x60, 0x00, 0x01, 0x7f, 0x02, 0x1e, 0x01, 0x16, 0x77,
	0x61, 0x73, 0x69, 0x3a, 0x63, 0x6c, 0x6f, 0x63, 0x6b, 0x73, 0x2f, 0x77,
	0x61, 0x6c, 0x6c, 0x2d, 0x63, 0x6c, 0x6f, 0x63, 0x6b, 0x03, 0x6e, 0x6f,
	0x77, 0x00, 0x00, 0x03, 0x02, 0x01, 0x01, 0x07, 0x07, 0x01, 0x03, 0x72,
	0x75, 0x6e, 0x00, 0x01, 0x0a, 0x09, 0x01, 0x07, 0x00, 0x10, 0x00, 0x1a,
	0x41, 0x00, 0x0b,
}

// Package mem implements an in-memory [stack.DeviceStack] for tests and
// simulation.
//
// It is the software stand-in for a real USB device stack: transfers
// submitted by the engine stay pending until the test plays the host role
// with [Stack.CompleteIn] and [Stack.CompleteOut], and deferred work queues
// until [Stack.RunTasks] drains it. This makes the ordering guarantees of
// the engine observable: a test can assert that decode callbacks have not
// fired before the task queue runs, that exactly one transfer is in flight
// per endpoint direction, and that a forced completion failure
// ([Stack.FailNext]) leaves buffer cursors untouched.
//
// [stack]: github.com/HLammers/usb-midi/midi/stack
package mem

/*
Package executor provides the two backends of the ports.Executor contract:

  - Inline runs tasks synchronously in the caller, one at a time. It is
    the local fallback used for development and tests.
  - Pool runs tasks on a fixed set of goroutines and gives each actor a
    dedicated goroutine with a mailbox.

The orchestrator depends only on the interface and never branches on
which backend is active; both backends pass ports.RunExecutorContract.
*/
package executor

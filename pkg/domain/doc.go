/*
Package domain contains the core domain models of the rewind debugger.

It defines the externally visible shapes of a debugging session: events, thread
information, the per-snapshot events status, the debugger state projection that clients
receive on every notification, the run state machine values, and the uniform result
returned by every debugger operation. This package is kept pure and free of I/O,
following the Hexagonal Architecture used across the module.

# Key Entities

  - Event: a named event instance (name plus optional payload).
  - ThreadInfo: one logical thread's location and declared events.
  - EventsStatus: requested, blocked, waited-for and external events of a sync point.
  - DebuggerState: the read-only projection published to clients.
  - RunState: the debugger's own state (stopped, sync_state, running, ...).
  - Result: success flag plus error code, never a raw error across the boundary.
*/
package domain

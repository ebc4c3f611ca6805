/*
Package ports defines the driven ports (interfaces) of the rewind debugger.

These interfaces decouple the execution-control core from the program it debugs and from
the infrastructure it persists to.

# Key Interfaces

  - Program: the concurrent-program execution engine (setup, start, trigger, external queue).
  - Snapshot: an immutable program state at one sync point.
  - EventSelectionStrategy: chooses the next event among the selectable ones.
  - Instrumentation: per-line hooks used for breakpoints and stepping.
  - StateStore: persists session records.
  - DistributedLocker: coordinates session access across replicas.
*/
package ports

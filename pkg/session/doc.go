/*
Package session manages the debugging sessions of a process.

A Manager creates debuggers, keeps them addressable by session ID and mirrors each
session's latest status and state into a StateStore, so sessions can be listed and
inspected from another process. Per-session store access is serialized locally and,
with a DistributedLocker, across replicas sharing the store.
*/
package session

/*
Package rewind is a time-travel debugger for behavioral programs.

A behavioral program is a set of logical threads that meet at sync points. At every sync
point each thread declares the events it requests, waits for and blocks; the program
selects one event, delivers it and runs the threads to their next sync point.

A Debugger drives such a program one sync point at a time. Between sync points it can
pause inside a thread on a breakpoint and step through lines. Every sync point it passes
is recorded, so a session can roll back to any earlier sync point and explore a
different branch from there.

# Usage

	prog, err := bprog.LoadFile("hot-cold.yaml")
	if err != nil {
		log.Fatal(err)
	}

	dbg := rewind.New(prog, rewind.WithLogger(logger))
	unsubscribe := dbg.Subscribe(bus.SubscriberFunc(func(n domain.Notification) {
		fmt.Println(n.Type, n.Status)
	}))
	defer unsubscribe()

	res := dbg.StartSync(ctx, rewind.RunConfig{Breakpoints: map[int]bool{6: true}})
	if !res.Success {
		log.Fatal(res.Message)
	}

Clients observe the session only through notifications: status changes, console lines
and full DebuggerState projections.

# Concurrency

Client methods may be called from any goroutine. Program code runs on a dedicated lane
and the run loop on another, so a paused line never blocks the client.
*/
package rewind

/*
Package runner drives a conversation with a Tick engine over a stream.

The runner reads one input at a time from an IOHandler, runs it through
Engine.Handle under a fixed conversation id and hands the result back to the
handler. Handlers decide the wire format:

  - TextHandler reads "intent key=value" lines and prints answer ids and texts.
  - JSONHandler reads and writes one JSON document per line.

Besides user actions, handlers recognize three commands: quit, reset (delete
the stored session) and session (print it).

# Usage

	r := runner.New(engine, "user-1",
		runner.WithHandler(runner.NewJSONHandler(os.Stdin, os.Stdout)),
		runner.WithLogger(logger),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner

/*
Package runner contains the local, terminal-facing pieces of ramal.

  - Sanitizer / SanitizeInput: inbound text hygiene (size limit, UTF-8,
    control characters). Every inbound message goes through it.
  - Console: an OutboundChannel and ChatLifecycle that prints effects and
    handoffs, used in place of WhatsApp when trying flows out.
  - Runner: a line-oriented REPL driving one chat of a Conversation.

# Usage

	console := runner.NewConsole(os.Stdout)
	bot := ramal.New(catalog, ramal.WithChannel(console), ramal.WithLifecycle(console))

	r := runner.NewRunner(bot,
		runner.WithFlow("politica-datos"),
		runner.WithInput(os.Stdin),
		runner.WithOutput(os.Stdout),
	)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner

/*
Package ramal is a conversational flow engine for debt-collection chats.

A flow is a directed graph of message, menu, input and condition nodes
authored in a CRM. Ramal walks one chat through a flow: it renders the
node messages, waits for replies, routes on conditions and, when the bot
can no longer help, hands the chat over to a human agent queue.

# Concept

The engine is a pure step function. Given a session, a compiled graph and
an inbound event it returns an updated session, the effects to deliver
and a terminal signal (continue, await_input, handoff or error). The Bot
in this package wraps the engine with everything a host needs: per-chat
serialization, session persistence, effect delivery and the handoff
policy (flow-requested handoffs, engine failures and the turn limit).

# Key Features

  - Deterministic: the same session, graph and event always yield the same result.
  - Fail safe: engine errors never reach the user; the chat goes to an agent.
  - Single handoff: a chat is assigned to the queue at most once per session.
  - Pluggable: graphs and sessions live in memory, files, SQLite or Redis.

# Usage

	graphs := memory.NewGraphStoreFromGraphs(graph)
	recorder := memory.NewRecorder()

	bot, err := ramal.New(graphs,
		ramal.WithChannel(recorder),
		ramal.WithLifecycle(recorder),
	)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if _, err := bot.Start(ctx, "573001112233@c.us", "politica-datos", "debtor-42"); err != nil {
		log.Fatal(err)
	}

	// Each inbound WhatsApp message:
	res, err := bot.HandleMessage(ctx, "573001112233@c.us", "Sí")
	if errors.Is(err, domain.ErrSessionNotFound) {
		// The chat is not in bot mode; leave it with the agents.
	}
*/
package ramal

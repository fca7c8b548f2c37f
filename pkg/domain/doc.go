/*
Package domain contains the core domain models of the Ramal flow engine.

It defines the flow graph (FlowDefinition, Node variants and their typed edges),
the per-chat Session, inbound events, outbound effects and the TransitionResult
produced by the engine. This package is kept pure and free of I/O so it can be
shared by the engine, the adapters and the hosts.

# Key Entities

  - FlowDefinition: a named, versioned conversation script with a start node.
  - Node: a closed set of node kinds (message, menu, input, condition).
  - Graph: a validated, immutable snapshot of one flow's nodes.
  - Session: the live cursor and variable bag of one chat.
  - TransitionResult: effects to dispatch plus the updated session and a terminal signal.
*/
package domain

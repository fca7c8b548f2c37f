/*
Package ports defines the driven ports (interfaces) of the Ramal flow engine.

These interfaces decouple the engine from storage backends, the messaging
channel and the surrounding CRM, so the engine stays usable with any channel
that can deliver inbound text and accept outbound text or menu commands.

# Key Interfaces

  - GraphStore: Reads flow definitions and their nodes (memory, YAML files, SQLite).
  - SessionStore: Persists one Session per chat (memory, files, Redis).
  - DistributedLocker: Serializes access to a chat across replicas.
  - EntityResolver: Resolves template paths against an external entity (e.g. a debtor record).
  - OutboundChannel: Delivers rendered effects to a chat.
  - ChatLifecycle: Hands a chat over to a human agent queue.
*/
package ports

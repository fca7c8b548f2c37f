/*
Package session implements the per-chat Session State Manager.

It serializes every read-modify-write of a chat's session, in-process through
a reference-counted mutex per chat and, when configured, across replicas
through a ports.DistributedLocker. Sessions of different chats never contend.
*/
package session

// Package ws implements the realtime relay that synchronizes session state
// between connected editors.
//
// The package implements:
//   - Client: One WebSocket connection with explicit group memberships
//   - Hub: The group of clients joined to one session id
//   - HubManager: Lazily creates hubs keyed by session id
//   - Handler: Upgrades connections and dispatches protocol events
//
// Protocol: a client joins a session with join-session and receives a full
// session-data snapshot; code-change and language-change events mutate the
// session store first and are then rebroadcast to every other member of the
// group. Mutations referencing a missing or never-vivified session id are
// answered with a rejected event to the sender only and never reach the
// store or the group. Disconnecting removes the client from all groups
// without notifying peers.
package ws

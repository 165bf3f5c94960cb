// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
// The CLI is a thin client: every queue mutation travels through here so the
// daemon's manager remains the only writer of queue state.
package ipc

// Package model defines the data structures shared by the relay: task records,
// cooldown entries, task states, progress snapshots, and the chat-side handles
// (inbound messages, message references, buttons, membership statuses).
package model

// Package relay implements the per-user fetch lifecycle of the bot:
// admission, progress reporting on a status message, extraction, upload with
// cleanup, and cooperative shutdown.
//
// Process-wide state (shutdown flag, task registry, cooldowns) lives in a
// Runtime that is passed to every component, so tests get fresh state.
package relay

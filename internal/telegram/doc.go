// Package telegram is a small Bot API client covering what the relay needs:
// long polling for updates, sending, editing and deleting messages, channel
// membership lookups, and streamed video uploads.
package telegram

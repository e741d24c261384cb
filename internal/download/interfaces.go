package download

import "github.com/ytget/relay-bot/internal/model"

// ProgressFunc receives progress snapshots while a fetch is running.
// It is called from the engine's goroutine and must not block for long.
type ProgressFunc func(model.Progress)

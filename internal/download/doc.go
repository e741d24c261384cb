// Package download fetches a single media item to a local file with yt-dlp
// (via github.com/lrstanley/go-ytdlp) and translates the engine's progress
// callbacks into model.Progress snapshots.
package download

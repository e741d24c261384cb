package relay

import (
	"context"
	"time"

	"github.com/ytget/relay-bot/internal/compress"
	"github.com/ytget/relay-bot/internal/download"
	"github.com/ytget/relay-bot/internal/model"
)

// Chat is the conversation transport
type Chat interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64, buttons []model.Button) (model.MessageRef, error)
	EditMessage(ctx context.Context, ref model.MessageRef, text string, buttons []model.Button) error
	DeleteMessage(ctx context.Context, ref model.MessageRef) error
	MembershipChecker
}

// MembershipChecker looks up a user's status in a channel
type MembershipChecker interface {
	GetMembership(ctx context.Context, channel string, userID int64) (model.MemberStatus, error)
}

// Uploader sends a local video file to a chat
type Uploader interface {
	SendVideo(ctx context.Context, chatID int64, path, caption string) (model.MessageRef, error)
}

// Extractor fetches media to a local file
type Extractor interface {
	Extract(ctx context.Context, url, outputPath string, onProgress download.ProgressFunc) (string, error)
}

// Compressor shrinks a file that exceeds the upload limit
type Compressor interface {
	Compress(ctx context.Context, inputPath string, onPercent compress.PercentFunc) (string, error)
}

// Handler processes one inbound message
type Handler interface {
	Handle(ctx context.Context, in model.Inbound) error
}

// Clock returns the current time
type Clock func() time.Time

package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/ytget/relay-bot/internal/locale"
	"github.com/ytget/relay-bot/internal/model"
)

const (
	// Downloads above this size are throttled
	throttleThreshold = 1024 * 1024
	progressInterval  = 500 * time.Millisecond
)

var animationFrames = []string{"⏳", "⏳.", "⏳..", "⏳..."}

// progressHook turns engine snapshots into status texts
type progressHook struct {
	rt    *Runtime
	texts *locale.Localization
	lang  string
	now   Clock
	offer func(text string)

	mu      sync.Mutex
	limiter *rate.Limiter
	count   int
}

func newProgressHook(rt *Runtime, texts *locale.Localization, lang string, now Clock, offer func(string)) *progressHook {
	return &progressHook{
		rt:      rt,
		texts:   texts,
		lang:    lang,
		now:     now,
		offer:   offer,
		limiter: rate.NewLimiter(rate.Every(progressInterval), 1),
	}
}

// Handle is passed to the extractor as its progress callback
func (h *progressHook) Handle(p model.Progress) {
	if h.rt.ShuttingDown() {
		return
	}
	if p.Phase != model.PhaseDownloading && p.Phase != model.PhaseFinished {
		return
	}

	h.mu.Lock()
	if p.Phase == model.PhaseDownloading && p.TotalBytes > throttleThreshold && !h.limiter.AllowN(h.now(), 1) {
		h.mu.Unlock()
		return
	}
	h.count++
	frame := animationFrames[h.count%len(animationFrames)]
	h.mu.Unlock()

	h.offer(h.render(p, frame))
}

func (h *progressHook) render(p model.Progress, frame string) string {
	label := h.texts.GetText(h.lang, locale.KeyDownloadedLabel)
	if p.Phase == model.PhaseFinished {
		return fmt.Sprintf("%s\n\n%s <code>%s</code>",
			h.texts.GetText(h.lang, locale.KeyDownloadComplete),
			label,
			formatSize(p.TotalBytes))
	}
	return fmt.Sprintf("%s\n\n%s <code>%s / %s</code> (%d%%)\n%s",
		h.texts.Format(h.lang, locale.KeyDownloading, frame),
		label,
		formatSize(p.DownloadedBytes),
		formatSize(p.TotalBytes),
		p.Percent(),
		h.texts.GetText(h.lang, locale.KeyDownloadingSubline))
}

func formatSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

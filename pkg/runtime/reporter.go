package runtime

import (
	"context"
	"log/slog"

	"github.com/germanamz/deckhand/pkg/logging"
)

// reporter writes to slog and, for enabled levels, posts a Log notice so
// hooks observe the message on the dispatch goroutine.
type reporter struct {
	log  *slog.Logger
	post func(notice)
}

func (r *reporter) Log(level logging.Level, msg string, args ...any) {
	sl := level.SlogLevel()
	if !r.log.Enabled(context.Background(), sl) {
		return
	}

	r.log.Log(context.Background(), sl, msg, args...)
	r.post(notice{kind: noticeLog, level: level, msg: msg})
}

package engine

import (
	"errors"
	"io"
	"log/slog"

	"mbp-reconstructor/internal/mbo"
)

// Source yields decoded events until io.EOF.
type Source interface {
	Next() (mbo.Event, error)
}

/*
Replay drains src through e and closes it.

Rejected events are logged and skipped. Read and sink errors stop the replay;
output already written reflects exactly the events processed before them.
progress, when set, sees the engine totals after every event.
*/
func Replay(src Source, e *Engine, progress func(Stats)) (Summary, error) {
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, err
		}

		if err := e.Process(ev); err != nil {
			if !errors.Is(err, ErrRejected) {
				return Summary{}, err
			}
			e.log.Warn("event rejected",
				slog.Uint64("sequence", ev.Sequence),
				slog.String("err", err.Error()),
			)
		}
		if progress != nil {
			progress(e.stats)
		}
	}
	return e.Close(), nil
}

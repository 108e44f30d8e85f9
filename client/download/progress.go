package download

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// progressWriter counts bytes written through it and reports a snapshot at
// most once per interval, plus once when the known total is reached.
type progressWriter struct {
	w        io.Writer
	report   func(Progress)
	interval time.Duration
	total    int64
	start    time.Time
	last     time.Time
	n        int64
}

func newProgressWriter(w io.Writer, total int64, report func(Progress)) *progressWriter {
	now := time.Now()
	return &progressWriter{w: w, report: report, interval: time.Second, total: total, start: now, last: now}
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.w.Write(p)
	pw.n += int64(n)

	now := time.Now()
	done := pw.total >= 0 && pw.n == pw.total
	if done || now.Sub(pw.last) >= pw.interval {
		pw.last = now
		pw.report(Progress{Transferred: pw.n, Total: pw.total, Elapsed: now.Sub(pw.start)})
	}

	return n, err
}

func logProgress(ctx context.Context, logger *slog.Logger, path string) func(Progress) {
	return func(p Progress) {
		attrs := []slog.Attr{
			slog.String("path", path),
			slog.Int64("transferred", p.Transferred),
			slog.Duration("elapsed", p.Elapsed.Round(time.Millisecond)),
			slog.Float64("mib_per_sec", p.BytesPerSecond()/(1<<20)),
		}
		if pct := p.Percent(); pct >= 0 {
			attrs = append(attrs, slog.Int64("total", p.Total), slog.Float64("percent", pct))
		}

		logger.LogAttrs(ctx, slog.LevelInfo, "download progress", attrs...)
	}
}

// both fans a snapshot out to two reporters, either of which may be nil.
func both(a, b func(Progress)) func(Progress) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(p Progress) {
		a(p)
		b(p)
	}
}

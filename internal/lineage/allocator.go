package lineage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Sequencer hands out per-prefix counters.
type Sequencer interface {
	SequenceNext(ctx context.Context, prefix string) (int, error)
}

// Allocator produces split order numbers of the form SOVyymm###.
type Allocator struct {
	seq    Sequencer
	logger *slog.Logger
	now    func() time.Time
}

// NewAllocator constructs an Allocator.
func NewAllocator(seq Sequencer, logger *slog.Logger) *Allocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Allocator{seq: seq, logger: logger, now: time.Now}
}

// Prefix returns the sequence key for the month of t.
func Prefix(t time.Time) string {
	return "SOV" + t.Format("0601")
}

// FormatNumber renders a counter under prefix, zero padded to three digits.
func FormatNumber(prefix string, n int) string {
	return fmt.Sprintf("%s%03d", prefix, n)
}

// Next allocates the next order number. When the sequence store is unavailable
// it falls back to a unique, non-sequential timestamp suffix.
func (a *Allocator) Next(ctx context.Context) string {
	now := a.now()
	prefix := Prefix(now)
	n, err := a.seq.SequenceNext(ctx, prefix)
	if err == nil {
		return FormatNumber(prefix, n)
	}
	fallback := prefix + "-" + strings.ToUpper(strconv.FormatInt(now.UnixNano(), 36))
	a.logger.Warn("split sequence unavailable, using fallback number",
		slog.String("prefix", prefix),
		slog.String("number", fallback),
		slog.Any("error", err))
	return fallback
}

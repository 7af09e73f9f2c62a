package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
)

const progressBarSegments = 10

// DefaultProgressThrottle matches the chat platform edit rate we can
// sustain without hitting flood limits.
const DefaultProgressThrottle = 2 * time.Second

// EditFunc pushes a rendered progress text to the user, usually by editing
// a status message in place.
type EditFunc func(ctx context.Context, text string) error

// Reporter is a throttled, edit-in-place progress renderer. Updates are
// suppressed unless the throttle window elapsed, except at exactly 0 and 1
// which always go out. Reported percentages never decrease within one
// stream, keyed by caption, and errors from the edit capability (typically
// "message is not modified") are swallowed.
type Reporter struct {
	log      *slog.Logger
	edit     EditFunc
	throttle time.Duration
	now      func() time.Time

	mu          sync.Mutex
	emitted     bool
	lastEmit    time.Time
	lastPercent int
	lastCaption string
}

func NewReporter(log *slog.Logger, throttle time.Duration, now func() time.Time, edit EditFunc) *Reporter {
	return &Reporter{
		log:         log,
		edit:        edit,
		throttle:    throttle,
		now:         now,
		lastPercent: -1,
	}
}

// Report takes a fractional progress value in [0,1] and a caption line.
func (r *Reporter) Report(ctx context.Context, fraction float64, caption string) {
	fraction = clamp(fraction)
	boundary := fraction == 0 || fraction == 1

	r.mu.Lock()
	if caption != r.lastCaption {
		// A new stream started; monotonicity holds per stream, not
		// across them.
		r.lastCaption = caption
		r.lastPercent = -1
	}

	ts := r.now()
	if !boundary && r.emitted && ts.Sub(r.lastEmit) < r.throttle {
		r.mu.Unlock()
		return
	}

	percent := int(math.Round(fraction * 100))
	if percent < r.lastPercent {
		// A late callback from an earlier chunk; reported progress
		// stays monotonically non-decreasing.
		r.mu.Unlock()
		return
	}

	r.emitted = true
	r.lastEmit = ts
	r.lastPercent = percent
	r.mu.Unlock()

	text := fmt.Sprintf("[%s] %d%%\n%s", RenderBar(fraction), percent, caption)
	if err := r.edit(ctx, text); err != nil {
		r.log.Debug("Progress edit swallowed", "error", err)
	}
}

// Reset clears the monotonicity and throttle state so the next stream
// starts from a clean slate. Called between the download and upload legs
// of a transfer, whose captions may be identical.
func (r *Reporter) Reset() {
	r.mu.Lock()
	r.emitted = false
	r.lastPercent = -1
	r.lastCaption = ""
	r.mu.Unlock()
}

// RenderBar draws the fixed-width filled/unfilled progress bar.
func RenderBar(fraction float64) string {
	fraction = clamp(fraction)
	filled := int(math.Round(progressBarSegments * fraction))
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarSegments-filled)
}

func clamp(fraction float64) float64 {
	switch {
	case fraction < 0 || math.IsNaN(fraction):
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}

package progress

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar shows progress in a terminal.
type Bar struct {
	bar *progressbar.ProgressBar
}

func NewBar(w io.Writer, description string) *Bar {
	return &Bar{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(w, "\n") }),
	)}
}

func (b *Bar) OnProgress(percent float64, label string) {
	b.bar.Describe(label)
	_ = b.bar.Set(int(percent))
}

func (b *Bar) Finish() error {
	return b.bar.Finish()
}

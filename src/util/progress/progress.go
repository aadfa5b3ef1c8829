package progress

import (
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Counter counts bytes flowing through it and periodically logs the running
// total at debug level.
type Counter struct {
	log      logrus.FieldLogger
	label    string
	interval time.Duration
	now      func() time.Time

	mu          sync.Mutex
	n           int64
	lastPrinted time.Time
}

// NewCounter creates a Counter. A nil log disables reporting.
func NewCounter(log logrus.FieldLogger, label string) *Counter {
	return &Counter{log: log, label: label, interval: 10 * time.Second, now: time.Now}
}

func (c *Counter) add(n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += int64(n)
	if c.log == nil {
		return
	}
	now := c.now()
	if c.lastPrinted.IsZero() {
		c.lastPrinted = now
		return
	}
	if now.Sub(c.lastPrinted) >= c.interval {
		c.log.Debugf("[%s] %s", c.label, humanize.IBytes(uint64(c.n)))
		c.lastPrinted = now
	}
}

// Total returns the bytes counted so far.
func (c *Counter) Total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Human returns Total formatted for log lines.
func (c *Counter) Human() string {
	return humanize.IBytes(uint64(c.Total()))
}

// Writer wraps w so that writes are counted.
func (c *Counter) Writer(w io.Writer) io.Writer {
	return writer{c: c, w: w}
}

// Reader wraps r so that reads are counted.
func (c *Counter) Reader(r io.Reader) io.Reader {
	return reader{c: c, r: r}
}

type writer struct {
	c *Counter
	w io.Writer
}

func (w writer) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.c.add(n)
	return n, err
}

type reader struct {
	c *Counter
	r io.Reader
}

func (r reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.c.add(n)
	return n, err
}

// Package logs captures container output and fans it out to listeners.
package logs

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/railwayapp/wharf/internal/ctxlog"
)

// Entry is one captured log line.
type Entry struct {
	ContainerID string
	Service     string
	Time        time.Time
	Line        string
}

// Listener receives captured entries. It is called with the aggregator lock
// held and must not call back into the aggregator.
type Listener interface {
	OnLogEntry(Entry)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Entry)

func (f ListenerFunc) OnLogEntry(e Entry) { f(e) }

// Target is a container to capture.
type Target struct {
	ID      string
	Service string
}

// Follower opens a timestamped log stream of a container. Each line of the
// stream starts with an RFC 3339 timestamp followed by a space. The stream
// ends when the container stops.
type Follower interface {
	Follow(ctx context.Context, containerID string, since time.Time) (io.ReadCloser, error)
}

// Aggregator tails containers in the background. For every container it
// keeps the newest timestamp delivered so far. A resumed capture skips the
// replayed lines up to that mark; once the stream is past it every line is
// delivered, including lines whose stdout and stderr stamps tie or arrive
// out of order. Every listener sees the complete history since the first
// capture, followed by live entries.
type Aggregator struct {
	follower Follower

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	mu        sync.Mutex
	listeners []Listener
	history   []Entry
	marks     map[string]time.Time
	tailing   map[string]bool
}

func NewAggregator(ctx context.Context, follower Follower) *Aggregator {
	ctx, cancel := context.WithCancel(ctx)
	return &Aggregator{
		follower: follower,
		ctx:      ctx,
		cancel:   cancel,
		marks:    make(map[string]time.Time),
		tailing:  make(map[string]bool),
	}
}

// EnsureCapturing starts tailing every target that is not already tailed.
// A container seen before resumes after its last delivered line; a new one
// starts at since. It never blocks on the streams.
func (a *Aggregator) EnsureCapturing(since time.Time, targets []Target) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ctx.Err() != nil {
		return
	}
	for _, t := range targets {
		if t.ID == "" || a.tailing[t.ID] {
			continue
		}
		from, resume := since, time.Time{}
		if mark, ok := a.marks[t.ID]; ok {
			from, resume = mark, mark
		}
		a.tailing[t.ID] = true
		target := t
		a.group.Go(func() error {
			a.tail(target, from, resume)
			return nil
		})
	}
}

// RegisterListener replays the captured history to l, subscribes it to new
// entries and makes sure the targets are captured from their first line.
func (a *Aggregator) RegisterListener(l Listener, targets []Target) {
	a.mu.Lock()
	for _, e := range a.history {
		l.OnLogEntry(e)
	}
	a.listeners = append(a.listeners, l)
	a.mu.Unlock()

	a.EnsureCapturing(time.Time{}, targets)
}

// Close stops every tailer and waits for them to return.
func (a *Aggregator) Close() error {
	a.cancel()
	return a.group.Wait()
}

// tail streams t from since. When resume is set, lines stamped at or before
// it were already delivered by an earlier tail and are dropped until the
// stream moves past it.
func (a *Aggregator) tail(t Target, since, resume time.Time) {
	log := ctxlog.FromContext(a.ctx).With("container", t.ID, "service", t.Service)
	defer func() {
		a.mu.Lock()
		delete(a.tailing, t.ID)
		a.mu.Unlock()
	}()

	stream, err := a.follower.Follow(a.ctx, t.ID, since)
	if err != nil {
		if a.ctx.Err() == nil {
			log.Debug("unable to follow container logs", "error", err)
		}
		return
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ts, line, ok := ParseLine(scanner.Text())
		if !ok {
			log.Debug("skipping log line without timestamp", "line", scanner.Text())
			continue
		}
		if !resume.IsZero() {
			if !ts.After(resume) {
				continue
			}
			resume = time.Time{}
		}
		a.deliver(Entry{ContainerID: t.ID, Service: t.Service, Time: ts, Line: line})
	}
	if err := scanner.Err(); err != nil && a.ctx.Err() == nil {
		log.Debug("log stream interrupted", "error", err)
	}
}

func (a *Aggregator) deliver(e Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Time.After(a.marks[e.ContainerID]) {
		a.marks[e.ContainerID] = e.Time
	}
	a.history = append(a.history, e)
	for _, l := range a.listeners {
		l.OnLogEntry(e)
	}
}

// ParseLine splits a timestamped log line into its time and content.
func ParseLine(raw string) (time.Time, string, bool) {
	raw = strings.TrimRight(raw, "\r")
	stamp, line, found := strings.Cut(raw, " ")
	ts, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return time.Time{}, "", false
	}
	if !found {
		return ts, "", true
	}
	return ts, line, true
}

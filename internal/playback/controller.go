package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/haptics"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultPeekPause    = 100 * time.Millisecond
)

// Controller plays a list of stories. Every transition stops the running
// ticker before the cursor moves and starts a fresh one, and a tick carries
// the generation of the ticker that produced it, so a tick never lands on a
// segment it was not scheduled for.
type Controller struct {
	f       *Factory
	onEvent func(Event)

	mu        sync.Mutex
	m         machine
	pauses    PauseReason
	started   bool
	dismissed bool
	reason    DismissReason
	viewerID  string
	gen       uint64
	ticker    clockwork.Ticker
	stopTick  chan struct{}
	mark      time.Time
	peekSeq   uint64
	peekTimer clockwork.Timer
	done      chan struct{}

	queue      []Event
	delivering bool
}

// Start resolves the viewer and begins ticking on the first segment. A
// controller with no playable stories dismisses immediately.
func (c *Controller) Start(ctx context.Context) {
	viewerID := ""
	if c.f.profile != nil {
		viewer, err := c.f.profile.Viewer(ctx)
		if err != nil {
			c.f.log.Warn("Could not resolve viewer", "error", err)
		} else {
			viewerID = viewer.ID
		}
	}

	c.mu.Lock()
	if c.started || c.dismissed {
		c.mu.Unlock()
		return
	}
	c.started = true

	c.viewerID = viewerID

	var events []Event
	if len(c.m.stories) == 0 {
		events = c.dismissLocked(DismissNoStories)
	} else {
		c.startTickerLocked()
		events = []Event{{Kind: EventSegment, Cursor: c.cursorLocked()}}
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

// Tap handles a tap at x on a surface width wide: left third goes back,
// right third goes forward, the centre pauses briefly or resumes a pause.
func (c *Controller) Tap(x, width float64) {
	if width <= 0 || math.IsNaN(x) {
		return
	}

	c.mu.Lock()
	if !c.activeLocked() {
		c.mu.Unlock()
		return
	}
	var events []Event
	switch {
	case x < width/3:
		events = c.retreatLocked()
	case x > width*2/3:
		events = c.advanceLocked()
	case c.pauses&(PauseHold|PausePeek) != 0:
		events = c.resumeLocked(PauseHold | PausePeek)
	default:
		events = c.peekLocked()
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

// LongPress pauses while the press is held and resumes on release.
func (c *Controller) LongPress(began bool) {
	c.mu.Lock()
	if !c.activeLocked() {
		c.mu.Unlock()
		return
	}
	var events []Event
	if began {
		events = c.pauseLocked(PauseHold)
	} else {
		events = c.resumeLocked(PauseHold)
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

// Swipe handles a finished drag with translation (dx, dy). Down dismisses,
// up opens the creator profile, sideways navigates whole stories.
func (c *Controller) Swipe(dx, dy float64) {
	cfg := c.f.cfg.Playback

	c.mu.Lock()
	if !c.activeLocked() {
		c.mu.Unlock()
		return
	}
	var events []Event
	switch {
	case dy > cfg.DismissSwipe:
		events = c.dismissLocked(DismissSwipeDown)
	case dy < -cfg.ProfileSwipe:
		events = []Event{{
			Kind:      EventProfilePeek,
			Cursor:    c.cursorLocked(),
			CreatorID: c.m.stories[c.m.story].CreatorID,
		}}
	case math.Abs(dx) > cfg.NavigationSwipe:
		if dx > 0 {
			events = c.moveLocked(c.m.previousStory, DismissRetreatPastStart)
		} else {
			events = c.moveLocked(c.m.nextStory, DismissFinished)
		}
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) EnterBackground() {
	c.mu.Lock()
	var events []Event
	if c.activeLocked() {
		events = c.pauseLocked(PauseBackground)
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) EnterForeground() {
	c.mu.Lock()
	var events []Event
	if c.activeLocked() {
		events = c.resumeLocked(PauseBackground)
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

// Dismiss closes the viewer. No tick is applied afterwards.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	events := c.dismissLocked(DismissClosed)
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) Cursor() Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorLocked()
}

// Current returns the story and segment under the cursor.
func (c *Controller) Current() (domain.Story, domain.StorySegment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.m.stories) == 0 {
		return domain.Story{}, domain.StorySegment{}, false
	}
	return c.m.stories[c.m.story], c.m.current(), true
}

func (c *Controller) IsAtFirst() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m.stories) == 0 || c.m.atFirst()
}

func (c *Controller) IsAtLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m.stories) == 0 || c.m.atLast()
}

// IsOwnStory reports whether the viewer created the current story.
func (c *Controller) IsOwnStory() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewerID == "" || len(c.m.stories) == 0 {
		return false
	}
	return c.m.stories[c.m.story].CreatorID == c.viewerID
}

// Dismissed returns the reason the controller was dismissed, if it was.
func (c *Controller) Dismissed() (DismissReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.dismissed
}

// Done is closed on dismissal.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) activeLocked() bool {
	return c.started && !c.dismissed
}

func (c *Controller) cursorLocked() Cursor {
	if len(c.m.stories) == 0 {
		return Cursor{Paused: c.pauses != 0}
	}
	return Cursor{
		StoryIndex:   c.m.story,
		SegmentIndex: c.m.segment,
		Progress:     c.m.progress(),
		Paused:       c.pauses != 0,
	}
}

func (c *Controller) advanceLocked() []Event {
	return c.moveLocked(c.m.advance, DismissFinished)
}

func (c *Controller) retreatLocked() []Event {
	return c.moveLocked(c.m.retreat, DismissRetreatPastStart)
}

// moveLocked invalidates the ticker, applies move and restarts ticking on
// the new segment. A move that has nowhere to go dismisses.
func (c *Controller) moveLocked(move func() bool, otherwise DismissReason) []Event {
	c.stopTickerLocked()
	if !move() {
		return c.dismissLocked(otherwise)
	}
	c.startTickerLocked()
	return []Event{{Kind: EventSegment, Cursor: c.cursorLocked()}}
}

func (c *Controller) pauseLocked(r PauseReason) []Event {
	was := c.pauses
	c.pauses |= r
	if was != 0 || c.pauses == 0 {
		return nil
	}
	c.stopTickerLocked()
	c.f.haptics.Notify(haptics.PauseToggle)
	return []Event{{Kind: EventPaused, Cursor: c.cursorLocked()}}
}

func (c *Controller) resumeLocked(r PauseReason) []Event {
	if c.pauses&r == 0 {
		return nil
	}
	c.pauses &^= r
	if r&PausePeek != 0 {
		c.cancelPeekLocked()
	}
	if c.pauses != 0 {
		return nil
	}
	c.startTickerLocked()
	c.f.haptics.Notify(haptics.PauseToggle)
	return []Event{{Kind: EventResumed, Cursor: c.cursorLocked()}}
}

// peekLocked pauses for the peek duration and then resumes on its own.
func (c *Controller) peekLocked() []Event {
	events := c.pauseLocked(PausePeek)

	delay := c.f.cfg.Playback.PeekPause
	if delay <= 0 {
		delay = defaultPeekPause
	}
	c.cancelPeekLocked()
	c.peekSeq++
	seq := c.peekSeq
	c.peekTimer = c.f.clock.AfterFunc(delay, func() {
		c.mu.Lock()
		var events []Event
		if seq == c.peekSeq && c.activeLocked() {
			c.peekTimer = nil
			events = c.resumeLocked(PausePeek)
		}
		c.enqueueLocked(events)
		c.mu.Unlock()
		c.flush()
	})
	return events
}

func (c *Controller) cancelPeekLocked() {
	if c.peekTimer != nil {
		c.peekTimer.Stop()
		c.peekTimer = nil
	}
	c.peekSeq++
}

func (c *Controller) dismissLocked(reason DismissReason) []Event {
	if c.dismissed {
		return nil
	}
	c.dismissed = true
	c.reason = reason
	c.stopTickerLocked()
	c.cancelPeekLocked()
	close(c.done)

	c.f.metrics.PlaybackDismissed(string(reason))
	c.f.log.Info("Story viewer dismissed", "reason", string(reason), "story_index", c.m.story, "segment_index", c.m.segment)
	return []Event{{Kind: EventDismissed, Cursor: c.cursorLocked(), Reason: reason}}
}

func (c *Controller) startTickerLocked() {
	if !c.activeLocked() || c.pauses != 0 {
		return
	}
	c.stopTickerLocked()

	interval := c.f.cfg.Playback.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	c.ticker = c.f.clock.NewTicker(interval)
	c.stopTick = make(chan struct{})
	c.mark = c.f.clock.Now()
	go c.tickLoop(c.gen, c.ticker, c.stopTick)
}

func (c *Controller) stopTickerLocked() {
	c.gen++
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.stopTick)
	c.ticker = nil
	c.stopTick = nil
}

func (c *Controller) tickLoop(gen uint64, t clockwork.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.Chan():
			c.onTick(gen)
		}
	}
}

// onTick adds the clock time since the previous tick to the segment.
// Ticks the ticker dropped while the loop was busy are still counted.
func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.activeLocked() || c.pauses != 0 {
		c.mu.Unlock()
		return
	}
	now := c.f.clock.Now()
	delta := now.Sub(c.mark)
	c.mark = now

	var events []Event
	if c.m.tick(delta) {
		events = c.advanceLocked()
	}
	c.enqueueLocked(events)
	c.mu.Unlock()
	c.flush()
}

// enqueueLocked queues events in the order their transitions happened and
// stamps each with the segment under the cursor.
func (c *Controller) enqueueLocked(events []Event) {
	if c.onEvent == nil {
		return
	}
	for _, ev := range events {
		if len(c.m.stories) > 0 {
			ev.Segment = c.m.current()
		}
		c.queue = append(c.queue, ev)
	}
}

// flush delivers queued events without holding the lock. One goroutine
// delivers at a time, so onEvent sees events in transition order; a caller
// that finds delivery in progress leaves its events to that goroutine.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.onEvent(ev)
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}

// idle reports whether every queued event has been delivered.
func (c *Controller) idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.delivering && len(c.queue) == 0
}

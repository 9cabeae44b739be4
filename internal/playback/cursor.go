package playback

import (
	"time"

	"github.com/orgball2608/story-engine/internal/domain"
)

// Cursor is the viewer position. Progress resets to 0 on every segment or
// story transition.
type Cursor struct {
	StoryIndex   int
	SegmentIndex int
	Progress     float64
	Paused       bool
}

// machine is the timer-free part of playback: where the viewer is and how
// far into the segment. Progress is kept as elapsed time so n ticks of d
// always give exactly n*d/duration.
type machine struct {
	stories []domain.Story
	story   int
	segment int
	elapsed time.Duration
}

func (m *machine) segments() []domain.StorySegment {
	return m.stories[m.story].Segments
}

func (m *machine) current() domain.StorySegment {
	return m.segments()[m.segment]
}

func (m *machine) progress() float64 {
	d := m.current().Duration
	if d <= 0 {
		return 0
	}
	p := float64(m.elapsed) / float64(d)
	if p > 1 {
		return 1
	}
	return p
}

// tick adds delta to the current segment and reports whether it finished.
func (m *machine) tick(delta time.Duration) bool {
	if delta < 0 {
		delta = 0
	}
	m.elapsed += delta
	return m.elapsed >= m.current().Duration
}

func (m *machine) moveTo(story, segment int) {
	m.story = story
	m.segment = segment
	m.elapsed = 0
}

// advance moves to the next segment, then the next story's first segment.
// It returns false at the end of the last story.
func (m *machine) advance() bool {
	if m.segment < len(m.segments())-1 {
		m.moveTo(m.story, m.segment+1)
		return true
	}
	return m.nextStory()
}

// retreat moves to the previous segment, then the previous story's last
// segment. It returns false at the very first segment.
func (m *machine) retreat() bool {
	if m.segment > 0 {
		m.moveTo(m.story, m.segment-1)
		return true
	}
	return m.previousStory()
}

func (m *machine) nextStory() bool {
	if m.story >= len(m.stories)-1 {
		return false
	}
	m.moveTo(m.story+1, 0)
	return true
}

func (m *machine) previousStory() bool {
	if m.story == 0 {
		return false
	}
	prev := m.story - 1
	m.moveTo(prev, len(m.stories[prev].Segments)-1)
	return true
}

func (m *machine) atFirst() bool {
	return m.story == 0 && m.segment == 0
}

func (m *machine) atLast() bool {
	return m.story == len(m.stories)-1 && m.segment == len(m.segments())-1
}

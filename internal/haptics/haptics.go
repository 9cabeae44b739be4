package haptics

//go:generate go run go.uber.org/mock/mockgen -source=haptics.go -destination=mocks/mock.go

type Event string

const (
	Capture     Event = "capture"
	Like        Event = "like"
	PauseToggle Event = "pause_toggle"
	Published   Event = "published"
)

// Service is fire-and-forget feedback on discrete interaction events.
// Notify never blocks.
type Service interface {
	Notify(event Event)
}

package hapticsimpl

import (
	"github.com/orgball2608/story-engine/internal/haptics"
	"github.com/orgball2608/story-engine/pkg/logger"
)

// LogService records haptic events in the log; headless runs have no motor.
type LogService struct {
	log logger.Logger
}

var _ haptics.Service = (*LogService)(nil)

func New(log logger.Logger) *LogService {
	return &LogService{log: log}
}

func (s *LogService) Notify(event haptics.Event) {
	s.log.Debug("Haptic feedback", "event", event)
}

package switchnode

import (
	"errors"
	"log/slog"
)

var ErrLevelUnderflow = errors.New("close bracket received without a matching open bracket")

// inputStream tracks one declared input port. It is owned by the dispatch goroutine.
type inputStream struct {
	name      string
	level     int
	currIndex int
	done      bool
	logger    *slog.Logger
}

func newInputStream(name string, logger *slog.Logger) *inputStream {
	return &inputStream{name: name, logger: logger}
}

func (s *inputStream) Level() int {
	return s.level
}

func (s *inputStream) IncLevel() {
	s.level++
	s.logger.Debug("Incrementing input level", "input", s.name, "level", s.level)
}

// DecLevel leaves the current sub-stream. The level never goes below zero.
func (s *inputStream) DecLevel() error {
	if s.level == 0 {
		return ErrLevelUnderflow
	}

	s.level--
	s.logger.Debug("Decrementing input level", "input", s.name, "level", s.level)

	return nil
}

func (s *inputStream) CurrIndex() int {
	return s.currIndex
}

// IncCurrIndex moves the input on to the next condition.
func (s *inputStream) IncCurrIndex() {
	s.logger.Debug("Input done with condition", "input", s.name, "index", s.currIndex)
	s.currIndex++
}

func (s *inputStream) IsDone() bool {
	return s.done
}

func (s *inputStream) SetDone() {
	s.done = true
}

type inputStreams map[string]*inputStream

func (m inputStreams) allPast(index int) bool {
	for _, s := range m {
		if s.CurrIndex() <= index {
			return false
		}
	}

	return true
}

func (m inputStreams) allDone() bool {
	for _, s := range m {
		if !s.IsDone() {
			return false
		}
	}

	return true
}

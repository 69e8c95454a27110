package service

import (
	"fmt"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
)

// SlotGrid is a provider's theoretical full-day capacity: slot start times in
// the half-open window [start, end) at a fixed interval.
type SlotGrid struct {
	start    int
	end      int
	interval int
}

func NewSlotGrid(dayStart, dayEnd string, interval time.Duration) (SlotGrid, error) {
	start, err := models.ParseClock(dayStart)
	if err != nil {
		return SlotGrid{}, fmt.Errorf("day start: %w", err)
	}
	end, err := models.ParseClock(dayEnd)
	if err != nil {
		return SlotGrid{}, fmt.Errorf("day end: %w", err)
	}
	if end <= start {
		return SlotGrid{}, fmt.Errorf("day end %s must be after day start %s", dayEnd, dayStart)
	}
	step := int(interval / time.Minute)
	if step <= 0 || interval%time.Minute != 0 {
		return SlotGrid{}, fmt.Errorf("slot interval %s must be a whole number of minutes", interval)
	}
	return SlotGrid{start: start, end: end, interval: step}, nil
}

// DefaultSlotGrid is 08:00-17:00 in 30 minute slots.
func DefaultSlotGrid() SlotGrid {
	return SlotGrid{start: 8 * 60, end: 17 * 60, interval: 30}
}

func (g SlotGrid) Times() []string {
	times := make([]string, 0, (g.end-g.start)/g.interval+1)
	for m := g.start; m < g.end; m += g.interval {
		times = append(times, models.FormatClock(m))
	}
	return times
}

// Contains reports whether t is a slot start on the grid.
func (g SlotGrid) Contains(t string) bool {
	m, err := models.ParseClock(t)
	if err != nil {
		return false
	}
	return m >= g.start && m < g.end && (m-g.start)%g.interval == 0
}

// EndOf returns the end time of the slot starting at t.
func (g SlotGrid) EndOf(t string) (string, error) {
	m, err := models.ParseClock(t)
	if err != nil {
		return "", err
	}
	return models.FormatClock(m + g.interval), nil
}

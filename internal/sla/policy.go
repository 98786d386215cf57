package sla

import (
	"fmt"
	"time"

	"filetrack/internal/models"
)

// DefaultAllotments is the built-in SLA table.
var DefaultAllotments = map[models.PriorityCategory]time.Duration{
	models.CategoryRoutine:   72 * time.Hour,
	models.CategoryUrgent:    24 * time.Hour,
	models.CategoryImmediate: 4 * time.Hour,
	models.CategoryProject:   7 * 24 * time.Hour,
}

// Policy maps a priority category to its allotted duration.
type Policy struct {
	allotments map[models.PriorityCategory]time.Duration
}

// NewPolicy builds a policy from overrides on top of DefaultAllotments.
// Non-positive overrides are ignored.
func NewPolicy(overrides map[models.PriorityCategory]time.Duration) *Policy {
	table := make(map[models.PriorityCategory]time.Duration, len(DefaultAllotments))
	for k, v := range DefaultAllotments {
		table[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			table[k] = v
		}
	}
	return &Policy{allotments: table}
}

// AllotmentFor returns the allotted seconds for category.
func (p *Policy) AllotmentFor(category models.PriorityCategory) (int64, error) {
	d, ok := p.allotments[category]
	if !ok {
		return 0, models.NewValidationError(fmt.Sprintf("invalid priority category %q", category))
	}
	return int64(d / time.Second), nil
}

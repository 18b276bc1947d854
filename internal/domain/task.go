package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

type Task struct {
	ID          string
	ProjectID   string
	Lane        Lane
	Position    int
	Title       string
	Description string
	Priority    Priority
	Labels      []string

	CreatedByActor string
	UpdatedByActor string
	UpdatedByType  ActorType

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt *time.Time
}

type TaskInput struct {
	ID          string
	ProjectID   string
	Lane        Lane
	Position    int
	Title       string
	Description string
	Priority    Priority
	Labels      []string
}

func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.ProjectID == "" {
		return Task{}, ErrInvalidID
	}
	if in.Lane == "" {
		in.Lane = LaneNotStarted
	}
	if !in.Lane.Valid() {
		return Task{}, ErrInvalidLane
	}
	if in.Title == "" {
		return Task{}, ErrInvalidTitle
	}
	if in.Position < 0 {
		return Task{}, ErrInvalidPosition
	}

	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}

	return Task{
		ID:          in.ID,
		ProjectID:   in.ProjectID,
		Lane:        in.Lane,
		Position:    in.Position,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Labels:      normalizeLabels(in.Labels),

		CreatedByActor: DefaultActorID,
		UpdatedByActor: DefaultActorID,
		UpdatedByType:  ActorTypeUser,

		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (t *Task) Move(lane Lane, position int, now time.Time) error {
	if !lane.Valid() {
		return ErrInvalidLane
	}
	if position < 0 {
		return ErrInvalidPosition
	}
	t.Lane = lane
	t.Position = position
	t.UpdatedAt = now.UTC()
	return nil
}

func (t *Task) UpdateDetails(title, description string, priority Priority, labels []string, now time.Time) error {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return ErrInvalidTitle
	}
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Title = title
	t.Description = description
	t.Priority = priority
	t.Labels = normalizeLabels(labels)
	t.UpdatedAt = now.UTC()
	return nil
}

// Attribute records who last changed the task.
func (t *Task) Attribute(actorID string, actorType ActorType) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = DefaultActorID
	}
	if strings.TrimSpace(t.CreatedByActor) == "" {
		t.CreatedByActor = actorID
	}
	t.UpdatedByActor = actorID
	t.UpdatedByType = NormalizeActorType(actorType)
}

func (t *Task) Archive(now time.Time) {
	ts := now.UTC()
	t.ArchivedAt = &ts
	t.UpdatedAt = ts
}

func (t *Task) Restore(now time.Time) {
	t.ArchivedAt = nil
	t.UpdatedAt = now.UTC()
}

func normalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := map[string]struct{}{}
	for _, raw := range labels {
		label := strings.ToLower(strings.TrimSpace(raw))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

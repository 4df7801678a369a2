// Package chain rebuilds continuation histories from a flat set of tasks.
package chain

import "worklog/internal/models"

// Aggregate statuses of a whole chain.
const (
	StatusApproved = "Approved"
	StatusPending  = "Pending"
)

// Chain is a task together with the ancestors it continues.
type Chain struct {
	Task models.Task `json:"task"`
	// History is ordered closest ancestor first.
	History    []models.Task `json:"history"`
	Status     string        `json:"aggregateStatus"`
	TotalHours float64       `json:"totalTimeSpent"`
}

// Index keys tasks by id for parent lookups.
func Index(tasks []models.Task) map[int64]models.Task {
	byID := make(map[int64]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	return byID
}

// Resolve walks the parent links of task through known.
// Missing parents end the walk without error.
func Resolve(task models.Task, known map[int64]models.Task) Chain {
	history := []models.Task{}
	seen := map[int64]struct{}{task.ID: {}}

	for parentID := task.ParentID; parentID != nil; {
		parent, ok := known[*parentID]
		if !ok {
			break
		}
		if _, loop := seen[parent.ID]; loop {
			break
		}
		seen[parent.ID] = struct{}{}
		history = append(history, parent)
		parentID = parent.ParentID
	}

	return Chain{
		Task:       task,
		History:    history,
		Status:     aggregateStatus(task, history),
		TotalHours: totalHours(task, history),
	}
}

func aggregateStatus(task models.Task, history []models.Task) string {
	if task.IsPending() {
		return StatusPending
	}
	for _, t := range history {
		if t.IsPending() {
			return StatusPending
		}
	}
	return StatusApproved
}

func totalHours(task models.Task, history []models.Task) float64 {
	total := task.Hours()
	for _, t := range history {
		total += t.Hours()
	}
	return total
}

// VisibleTopLevel drops tasks that another task in the set continues.
// Order is preserved.
func VisibleTopLevel(tasks []models.Task) []models.Task {
	parents := make(map[int64]struct{})
	for _, t := range tasks {
		if t.ParentID != nil {
			parents[*t.ParentID] = struct{}{}
		}
	}

	visible := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if _, superseded := parents[t.ID]; superseded {
			continue
		}
		visible = append(visible, t)
	}
	return visible
}

// ResolveTopLevel resolves every visible task of the set into its chain.
func ResolveTopLevel(tasks []models.Task) []Chain {
	known := Index(tasks)
	visible := VisibleTopLevel(tasks)

	chains := make([]Chain, 0, len(visible))
	for _, t := range visible {
		chains = append(chains, Resolve(t, known))
	}
	return chains
}

// Stats is the dashboard summary over a set of tasks.
type Stats struct {
	Total      int     `json:"totalTasks"`
	Approved   int     `json:"completedTasks"`
	Pending    int     `json:"pendingTasks"`
	TotalHours float64 `json:"totalHours"`
}

// Summarize counts approved and pending tasks individually, not per chain.
func Summarize(tasks []models.Task) Stats {
	var s Stats
	for _, t := range tasks {
		s.Total++
		if t.IsPending() {
			s.Pending++
		} else {
			s.Approved++
		}
		s.TotalHours += t.Hours()
	}
	return s
}

package models

import (
	"strconv"
	"strings"
	"time"
)

// Approval states that are not approver signatures.
const (
	StatePending  = "Pending"
	StateResolved = "Resolved"
)

// ContinuedMarker is appended to a parent's outcome once a child continues it.
const ContinuedMarker = " (Continued in new task)"

// Task is one daily work report.
type Task struct {
	ID            int64     `db:"id" json:"id"`
	OwnerID       string    `db:"owner_id" json:"ownerId"`
	AuthorName    string    `db:"author_name" json:"authorName"`
	Project       string    `db:"project" json:"project"`
	Date          time.Time `db:"date" json:"date"`
	Deadline      *string   `db:"deadline" json:"deadline"`
	Description   string    `db:"description" json:"description"`
	Outcome       string    `db:"outcome" json:"outcome"`
	PendingReason string    `db:"pending_reason" json:"pendingReason"`
	TimeSpent     string    `db:"time_spent" json:"timeSpentHours"`
	ApprovalState string    `db:"approval_state" json:"approvalState"`
	ParentID      *int64    `db:"parent_id" json:"parentId"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// IsPending reports whether nobody has signed off or superseded the task yet.
func (t Task) IsPending() bool {
	return t.ApprovalState == "" || t.ApprovalState == StatePending
}

// Hours parses the recorded time spent, treating absent or malformed values as zero.
func (t Task) Hours() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(t.TimeSpent), 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// TaskUpdate lists the partial changes the store can apply to a task.
type TaskUpdate struct {
	ApprovalState *string
	// OutcomeSuffix is appended to the current outcome when non-empty.
	OutcomeSuffix string
}

// Empty reports whether the update would change nothing.
func (u TaskUpdate) Empty() bool {
	return u.ApprovalState == nil && u.OutcomeSuffix == ""
}

// User is a registered employee account.
type User struct {
	ID           int64     `db:"id" json:"-"`
	EmpID        string    `db:"emp_id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         Role      `db:"role" json:"role"`
	Dept         string    `db:"dept" json:"dept"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Actor returns the identity the user acts under.
func (u User) Actor() Actor {
	return Actor{ID: u.EmpID, Name: u.Name, Role: u.Role}
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Package policy holds the role-based authorization matrix for task actions.
package policy

import "worklog/internal/models"

// Action is an operation subject to authorization.
type Action int

const (
	CreateTask Action = iota
	ListOwnTasks
	ListAllTasks
	ApproveTask
	DeleteTask
	RegisterUser
)

// Allowed reports whether actor may perform action on a resource owned by ownerID.
// ownerID is ignored for actions that are not owner-scoped.
func Allowed(actor models.Actor, action Action, ownerID string) bool {
	if actor.ID == "" {
		return false
	}
	owner := ownerID != "" && ownerID == actor.ID

	switch actor.Role {
	case models.RoleEmployee:
		switch action {
		case CreateTask, ListOwnTasks:
			return true
		case DeleteTask:
			return owner
		}
		return false
	case models.RolePM:
		switch action {
		case CreateTask, ListOwnTasks, ListAllTasks, ApproveTask:
			return true
		case DeleteTask:
			return owner
		}
		return false
	case models.RoleAdmin:
		switch action {
		case CreateTask, ListOwnTasks, ListAllTasks, ApproveTask, RegisterUser:
			return true
		case DeleteTask:
			return owner
		}
		return false
	}
	return false
}

// SeesAllTasks reports whether role-scoped listing returns every task for actor.
func SeesAllTasks(actor models.Actor) bool {
	return Allowed(actor, ListAllTasks, "")
}

// CanView reports whether actor may read a task owned by ownerID.
func CanView(actor models.Actor, ownerID string) bool {
	if SeesAllTasks(actor) {
		return true
	}
	return Allowed(actor, ListOwnTasks, ownerID) && ownerID == actor.ID
}

// Signature is the approval signature recorded for actor.
func Signature(actor models.Actor) string {
	switch actor.Role {
	case models.RoleAdmin:
		return actor.Name + " (Admin)"
	case models.RolePM, models.RoleEmployee:
		return actor.Name
	}
	return actor.Name
}

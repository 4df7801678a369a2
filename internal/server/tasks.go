package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"worklog/internal/lifecycle"
)

// hours accepts either a JSON number or a numeric string.
type hours string

func (h *hours) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*h = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*h = hours(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timeSpentHours must be a number")
	}
	*h = hours(n.String())
	return nil
}

type taskRequest struct {
	AuthorName    string  `json:"authorName"`
	Project       string  `json:"project"`
	Date          string  `json:"date"`
	Deadline      *string `json:"deadline"`
	Description   string  `json:"description"`
	Outcome       string  `json:"outcome"`
	PendingReason string  `json:"pendingReason"`
	TimeSpent     hours   `json:"timeSpentHours"`
	ParentID      *int64  `json:"parentId"`
	// LinkedTaskID is the older name for ParentID.
	LinkedTaskID *int64 `json:"linkedTaskId"`
}

type approveRequest struct {
	Signature string `json:"signature"`
}

type legacyApproveRequest struct {
	RowIndex  int64  `json:"rowIndex"`
	Signature string `json:"signature"`
}

// handleListTasks returns role-scoped tasks. By default superseded parents are
// folded into their continuation's history; view=flat returns every row.
func (s *Server) handleListTasks(c *gin.Context) {
	actor := actorFrom(c)

	if c.Query("view") == "flat" {
		tasks, err := s.tasks.ListTasks(c.Request.Context(), actor)
		if err != nil {
			s.respondError(c, err)
			return
		}
		respondSuccess(c, http.StatusOK, "", gin.H{"tasks": tasks})
		return
	}

	chains, err := s.tasks.ListChains(c.Request.Context(), actor)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"tasks": chains})
}

// handleCreateTask submits a task, optionally continuing an earlier one.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	in := lifecycle.CreateInput{
		AuthorName:    req.AuthorName,
		Project:       req.Project,
		Deadline:      req.Deadline,
		Description:   req.Description,
		Outcome:       req.Outcome,
		PendingReason: req.PendingReason,
		TimeSpent:     string(req.TimeSpent),
		ParentID:      req.ParentID,
	}
	if in.ParentID == nil {
		in.ParentID = req.LinkedTaskID
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			respondBadRequest(c, "date must be YYYY-MM-DD or RFC 3339")
			return
		}
		in.Date = &date
	}

	task, err := s.tasks.CreateTask(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Task Added", gin.H{"task": task})
}

// handleTaskHistory returns one task with its ancestor chain.
func (s *Server) handleTaskHistory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ch, err := s.tasks.GetChain(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"chain": ch})
}

// handleApproveTask signs off a task as the calling PM or admin.
func (s *Server) handleApproveTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req approveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}
	s.approve(c, id, req.Signature)
}

// handleLegacyApprove accepts the {rowIndex, signature} body of older clients.
func (s *Server) handleLegacyApprove(c *gin.Context) {
	var req legacyApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RowIndex <= 0 {
		respondBadRequest(c, "rowIndex is required")
		return
	}
	s.approve(c, req.RowIndex, req.Signature)
}

func (s *Server) approve(c *gin.Context, id int64, signature string) {
	task, err := s.tasks.ApproveTask(c.Request.Context(), actorFrom(c), id, signature)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Task Approved", gin.H{"task": task})
}

// handleDeleteTask removes a task owned by the caller.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.tasks.DeleteTask(c.Request.Context(), actorFrom(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Task Deleted", nil)
}

// handleStats returns dashboard counters for the caller's visible tasks.
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.tasks.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"stats": stats})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spektr-org/flightquery/engine"
	"github.com/spektr-org/flightquery/helpers"
	"github.com/spektr-org/flightquery/pkg/response"
	"github.com/spektr-org/flightquery/session"
)

// DefaultHistory is how many exchanges GET .../history returns without ?n=.
const DefaultHistory = 5

// SessionHandler handles HTTP requests for analysis sessions
type SessionHandler struct {
	manager *session.Manager
	now     func() time.Time
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager, now: time.Now}
}

// sessionView is the JSON shape of a session.
type sessionView struct {
	ID      string           `json:"id"`
	Created time.Time        `json:"created"`
	State   session.Snapshot `json:"state"`
}

func viewOf(s *session.Session) sessionView {
	return sessionView{ID: s.ID, Created: s.Created, State: s.State()}
}

// lookup resolves :id or writes a 404.
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		response.NotFound(c, "Session not found", err)
		return nil, false
	}
	return s, true
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	s := h.manager.Create()
	response.Created(c, viewOf(s))
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, viewOf(s))
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// Reset handles POST /api/v1/sessions/:id/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.Reset(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, viewOf(s))
}

// ============================================================================
// CHAT
// ============================================================================

type askRequest struct {
	Query string `json:"query" binding:"required"`
}

// askResponse is what the chat endpoint returns.
type askResponse struct {
	Produced    json.RawMessage           `json:"produced"`
	Summary     engine.Summary            `json:"summary"`
	Aggregation *engine.AggregationResult `json:"aggregation,omitempty"`
	Text        string                    `json:"text"`
	State       session.Snapshot          `json:"state"`
}

// Ask handles POST /api/v1/sessions/:id/ask
func (h *SessionHandler) Ask(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	ans, err := s.Ask(c.Request.Context(), req.Query)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, askResponse{
		Produced:    ans.Translation.Produced,
		Summary:     ans.Result.Summary,
		Aggregation: ans.Result.Aggregation,
		Text:        engine.BuildText(ans.Result),
		State:       s.State(),
	})
}

// ClearChat handles DELETE /api/v1/sessions/:id/chat
func (h *SessionHandler) ClearChat(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	s.ClearChat()
	response.Success(c, viewOf(s))
}

// History handles GET /api/v1/sessions/:id/history?n=5 (n=0 returns all)
func (h *SessionHandler) History(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	n, err := intQuery(c, "n", DefaultHistory)
	if err != nil {
		response.BadRequest(c, "Invalid n", err)
		return
	}
	hist, err := s.History(c.Request.Context(), n)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, hist)
}

// ============================================================================
// MANUAL FILTERS
// ============================================================================

// SetFilter handles PUT /api/v1/sessions/:id/filters/:dimension. The body is
// the constraint value in the same shape the translator produces, e.g.
// [0, 5000] or ["mexico"].
func (h *SessionHandler) SetFilter(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "Failed to read body", err)
		return
	}
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		response.BadRequest(c, "Body must be a JSON value", nil)
		return
	}

	dim := c.Param("dimension")
	constraint, err := engine.DecodeConstraint(dim, raw, s.Registry())
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.SetManual(dim, constraint); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, viewOf(s))
}

// ClearFilter handles DELETE /api/v1/sessions/:id/filters/:dimension
func (h *SessionHandler) ClearFilter(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := s.ClearManual(c.Param("dimension")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, viewOf(s))
}

// ============================================================================
// DATA
// ============================================================================

// Summary handles GET /api/v1/sessions/:id/summary
func (h *SessionHandler) Summary(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	res, err := s.Result()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"summary":     res.Summary,
		"aggregation": res.Aggregation,
		"table":       engine.BuildAggregationTable(res.Aggregation),
		"period":      engine.DerivePeriod(res.View),
		"text":        engine.BuildText(res),
	})
}

// Records handles GET /api/v1/sessions/:id/records?offset=0&limit=100
func (h *SessionHandler) Records(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	offset, err := intQuery(c, "offset", 0)
	if err != nil || offset < 0 {
		response.BadRequest(c, "Invalid offset", err)
		return
	}
	limit, err := intQuery(c, "limit", 100)
	if err != nil || limit < 0 {
		response.BadRequest(c, "Invalid limit", err)
		return
	}

	view, err := s.Filtered()
	if err != nil {
		fail(c, err)
		return
	}
	page := engine.Page(view, offset, limit)
	response.Success(c, gin.H{
		"total":  view.Len(),
		"offset": offset,
		"limit":  limit,
		"table":  engine.BuildRecordTable("Filtered flights", page, s.Registry()),
	})
}

// Export handles GET /api/v1/sessions/:id/export: the filtered records as a
// CSV download with the original header and cells.
func (h *SessionHandler) Export(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}
	view, err := s.Filtered()
	if err != nil {
		fail(c, err)
		return
	}
	header := s.Registry().ColumnKeys()
	if ds := s.Dataset(); ds != nil && len(ds.Header) > 0 {
		header = ds.Header
	}

	var buf bytes.Buffer
	if err := helpers.WriteCSV(&buf, header, view, s.Registry()); err != nil {
		response.InternalError(c, "Failed to write export", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", helpers.ExportFilename(h.now())))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

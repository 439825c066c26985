package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crm-platform/internal/auth"
	"crm-platform/internal/reporting"
	"crm-platform/internal/sessions"
	"crm-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Initiator *sessions.Initiator
	Store     sessions.Store
	Teams     sessions.TeamDirectory
	Reports   *reporting.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: Credential validation happens upstream (SSO/identity service); this
// endpoint only exchanges an already-authenticated identity for tokens.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Sessions ---

type initiateRequest struct {
	Kind              string            `json:"kind"`
	CounterpartNumber string            `json:"counterpart_number"`
	LeadID            string            `json:"lead_id,omitempty"`
	Body              string            `json:"body,omitempty"`
	Record            bool              `json:"record,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// InitiateSession starts an outbound call or message. Synchronous: it
// returns only after the provider round trip (or its timeout) completed, so
// the session is never pending/queued in the response.
func (h Handlers) InitiateSession(c *gin.Context) {
	if h.Initiator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "initiator not configured"})
		return
	}
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	role, _ := auth.Role(c.Request.Context())

	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	s, err := h.Initiator.Initiate(c.Request.Context(), sessions.InitiateRequest{
		Kind:              sessions.Kind(req.Kind),
		OwnerUserID:       userID,
		OwnerRole:         role,
		CounterpartNumber: req.CounterpartNumber,
		LeadID:            req.LeadID,
		Body:              req.Body,
		Record:            req.Record,
		Tags:              req.Tags,
		Metadata:          req.Metadata,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"session_id": s.SessionID, "status": s.Status})
	case errors.Is(err, sessions.ErrInvalidAddress):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid counterpart number"})
	case errors.Is(err, sessions.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sessions.ErrPlacementCapExceeded):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many in-flight placements"})
	case s.SessionID != "":
		// Provider rejection or timeout: the session is already recorded as
		// failed; report it alongside the error.
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":          "initiation failed",
			"failure_kind":   string(sessions.FailureKindOf(err)),
			"session_id":     s.SessionID,
			"status":         s.Status,
			"failure_reason": s.FailureReason,
		})
	default:
		logger.FromGin(c).Error("initiation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "initiation failed"})
	}
}

func (h Handlers) scope(c *gin.Context) (sessions.Scope, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return sessions.Scope{}, false
	}
	role, err := auth.Role(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
		return sessions.Scope{}, false
	}
	scope, err := sessions.ScopeFor(c.Request.Context(), userID, role, h.Teams)
	if err != nil {
		logger.FromGin(c).Error("scope build failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scope resolution failed"})
		return sessions.Scope{}, false
	}
	return scope, true
}

// ListSessions lists sessions visible to the caller, newest first.
func (h Handlers) ListSessions(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	f := sessions.ListFilter{
		Scope:               scope,
		Kind:                sessions.Kind(c.Query("kind")),
		Status:              sessions.Status(c.Query("status")),
		Direction:           sessions.Direction(c.Query("direction")),
		LeadID:              c.Query("lead_id"),
		CounterpartContains: c.Query("counterpart"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		f.To = t
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.Store.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("session list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
}

// GetSession fetches one session, subject to the caller's scope.
func (h Handlers) GetSession(c *gin.Context) {
	if h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "store not configured"})
		return
	}
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	s, err := h.Store.GetByID(c.Request.Context(), c.Param("session_id"))
	if errors.Is(err, sessions.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("session fetch failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "fetch failed"})
		return
	}
	if !scope.Allows(s) {
		// Hide existence from out-of-scope callers.
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// TerminateSession requests a best-effort hangup/cancel. The response
// reflects the current local state; the provider webhook finalizes it.
func (h Handlers) TerminateSession(c *gin.Context) {
	if h.Initiator == nil || h.Store == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
		return
	}
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	s, err := h.Store.GetByID(c.Request.Context(), sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "fetch failed"})
		return
	}
	if !scope.Allows(s) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	s, err = h.Initiator.Terminate(c.Request.Context(), sessionID, userID, role)
	if err != nil {
		logger.FromGin(c).Error("terminate failed", "session_id", sessionID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "terminate request failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"session_id": s.SessionID, "status": s.Status})
}

// SessionsSummary returns scoped aggregate metrics.
func (h Handlers) SessionsSummary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	scope, ok := h.scope(c)
	if !ok {
		return
	}

	var rng reporting.TimeRange
	var err error
	if rng.From, err = time.Parse(time.RFC3339, c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	if rng.To, err = time.Parse(time.RFC3339, c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}

	summary, err := h.Reports.SessionsSummary(c.Request.Context(), reporting.SummaryRequest{
		Scope: scope,
		Range: rng,
		Kind:  sessions.Kind(c.Query("kind")),
	})
	if errors.Is(err, reporting.ErrInvalidRequest) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Package handlers provides HTTP API request handlers.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pairpad/backend/internal/model"
	"github.com/pairpad/backend/internal/registry"
	"github.com/pairpad/backend/internal/runner"
)

// runTimeout bounds one code execution on the run endpoint.
const runTimeout = 10 * time.Second

// SessionHandler handles HTTP requests for session management.
type SessionHandler struct {
	store   registry.Store
	runners *runner.Registry
}

// NewSessionHandler creates a SessionHandler on top of the session store
// and the runner registry.
func NewSessionHandler(store registry.Store, runners *runner.Registry) *SessionHandler {
	return &SessionHandler{
		store:   store,
		runners: runners,
	}
}

// CreateSessionResponse is the body returned by session creation.
type CreateSessionResponse struct {
	ID string `json:"id"`
}

// RunResponse is the body returned by the run endpoint.
type RunResponse struct {
	Language string               `json:"language"`
	Events   []runner.OutputEvent `json:"events"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// Create handles POST /api/session - allocates a fresh session with default
// contents and returns its id.
func (h *SessionHandler) Create(c *gin.Context) {
	session, err := h.store.Create(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session: "+err.Error())
		return
	}

	c.JSON(http.StatusCreated, CreateSessionResponse{ID: session.ID})
}

// Get handles GET /api/session/:id - returns the session state, vivifying
// it with defaults if the id is unknown. Reads never 404.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID is required")
		return
	}

	session, err := h.store.GetOrCreate(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, session)
}

// Run handles POST /api/session/:id/run - executes the session's stored
// code with the runner registered for its language and returns the captured
// output events.
func (h *SessionHandler) Run(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Session ID is required")
		return
	}

	session, err := h.store.GetOrCreate(c.Request.Context(), sessionID)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get session: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), runTimeout)
	defer cancel()

	events := []runner.OutputEvent{}
	err = h.runners.Run(ctx, session.Language, session.Code, func(event runner.OutputEvent) {
		events = append(events, event)
	})
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedLanguage) {
			sendError(c, http.StatusUnprocessableEntity, "UNSUPPORTED_LANGUAGE",
				"No runner registered for language "+session.Language)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			sendError(c, http.StatusGatewayTimeout, "RUN_TIMEOUT", "Execution timed out")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to run code: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, RunResponse{
		Language: session.Language,
		Events:   events,
	})
}

// RegisterRoutes registers the session handler routes on a Gin router group.
func (h *SessionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	session := rg.Group("/session")
	{
		session.POST("", h.Create)
		session.GET("/:id", h.Get)
		session.POST("/:id/run", h.Run)
	}
}

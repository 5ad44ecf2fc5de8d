package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/synthesis"
	"github.com/readwell/tomes/pkg/types"
)

type handler struct {
	library *tomes.Library
}

func newHandler(lib *tomes.Library) *handler {
	return &handler{library: lib}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain sentinels onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrEmptyQuery),
		errors.Is(err, types.ErrInvalidScope),
		errors.Is(err, types.ErrInvalidLimit):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrConceptNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrAllBackendsUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

// Health handles GET /health.
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type searchRequest struct {
	Query       string   `json:"query"`
	Sources     []string `json:"sources,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Detail      string   `json:"detail,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	TokenBudget int      `json:"token_budget,omitempty"`
}

// Search handles POST /api/v1/search.
func (h *handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	detail, err := types.ParseDetailLevel(req.Detail)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	resp, err := h.library.Search(c.Request.Context(), types.RetrievalRequest{
		Query:       req.Query,
		Scope:       types.Scope{Sources: req.Sources, Subjects: req.Subjects, Topics: req.Topics},
		Detail:      detail,
		Limit:       req.Limit,
		TokenBudget: req.TokenBudget,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type adviseRequest struct {
	Question         string   `json:"question"`
	Sources          []string `json:"sources,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
	Topics           []string `json:"topics,omitempty"`
	Perspective      string   `json:"perspective,omitempty"`
	IncludeCitations *bool    `json:"include_citations,omitempty"`
}

// Advise handles POST /api/v1/advise.
func (h *handler) Advise(c *gin.Context) {
	var req adviseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	perspective, err := synthesis.ParsePerspective(req.Perspective)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	includeCitations := true
	if req.IncludeCitations != nil {
		includeCitations = *req.IncludeCitations
	}

	advice, err := h.library.Advise(c.Request.Context(), req.Question,
		types.Scope{Sources: req.Sources, Subjects: req.Subjects, Topics: req.Topics},
		perspective, includeCitations)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, advice)
}

type compareRequest struct {
	Topic   string   `json:"topic"`
	Sources []string `json:"sources,omitempty"`
}

// Compare handles POST /api/v1/compare.
func (h *handler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.library.Compare(c.Request.Context(), req.Topic, req.Sources)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type traceRequest struct {
	Concept        string   `json:"concept"`
	Relationships  []string `json:"relationships,omitempty"`
	Depth          int      `json:"depth,omitempty"`
	IncludeSources bool     `json:"include_sources,omitempty"`
}

// Trace handles POST /api/v1/trace.
func (h *handler) Trace(c *gin.Context) {
	var req traceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	kinds := make([]types.RelationshipKind, 0, len(req.Relationships))
	for _, raw := range req.Relationships {
		kind := types.RelationshipKind(raw)
		if !types.ValidRelationshipKind(kind) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown relationship kind " + strconv.Quote(raw)})
			return
		}
		kinds = append(kinds, kind)
	}

	trace, err := h.library.TraceConcept(c.Request.Context(), req.Concept, kinds, req.Depth, req.IncludeSources)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, trace)
}

// Explore handles GET /api/v1/explore?path=...&detail=...
func (h *handler) Explore(c *gin.Context) {
	detail, err := types.ParseDetailLevel(c.Query("detail"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	result, err := h.library.Explore(c.Query("path"), detail)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListBooks handles GET /api/v1/books?subject=...
func (h *handler) ListBooks(c *gin.Context) {
	books, err := h.library.ListBooks(c.Query("subject"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

// ListTopics handles GET /api/v1/topics?subject=...
func (h *handler) ListTopics(c *gin.Context) {
	topics, err := h.library.Topics().List(c.Query("subject"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

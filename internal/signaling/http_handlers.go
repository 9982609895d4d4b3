package signaling

import (
	"errors"
	"net/http"

	"callrelay/internal/auth"
	"callrelay/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the signaling surface over HTTP.
// Keep these thin: parse/validate input, call the coordinator, return JSON.
type Handlers struct {
	Coordinator *Coordinator
}

type inviteRequest struct {
	CalleeID string `json:"callee_id"`
}

type sdpRequest struct {
	SDP string `json:"sdp"`
}

type iceCandidateRequest struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex string `json:"sdpMLineIndex,omitempty"`
}

func (h Handlers) Invite(c *gin.Context) {
	actorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.CalleeID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "callee_id required"})
		return
	}

	snap, err := h.Coordinator.Invite(c.Request.Context(), actorID, req.CalleeID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": snap.CallID})
}

func (h Handlers) Offer(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}
	sdp, ok := h.bindSDP(c)
	if !ok {
		return
	}

	snap, err := h.Coordinator.Offer(c.Request.Context(), actorID, callID, sdp)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) Answer(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}
	sdp, ok := h.bindSDP(c)
	if !ok {
		return
	}

	snap, err := h.Coordinator.Answer(c.Request.Context(), actorID, callID, sdp)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) Hold(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}

	snap, err := h.Coordinator.Hold(c.Request.Context(), actorID, callID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) Resume(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}

	snap, err := h.Coordinator.Resume(c.Request.Context(), actorID, callID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) IceCandidate(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}

	role := Role(c.Query("role"))
	if !ValidRole(role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "role must be caller or callee"})
		return
	}

	var req iceCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Candidate == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "candidate required"})
		return
	}

	snap, err := h.Coordinator.AddCandidate(c.Request.Context(), actorID, callID, role, IceCandidate{
		Candidate:     req.Candidate,
		SDPMid:        req.SDPMid,
		SDPMLineIndex: req.SDPMLineIndex,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) End(c *gin.Context) {
	actorID, callID, ok := h.actorAndCall(c)
	if !ok {
		return
	}

	snap, err := h.Coordinator.End(c.Request.Context(), actorID, callID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Events is the polling snapshot for participants and monitoring.
func (h Handlers) Events(c *gin.Context) {
	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	snap, err := h.Coordinator.Query(c.Request.Context(), callID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h Handlers) actorAndCall(c *gin.Context) (actorID, callID string, ok bool) {
	actorID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return "", "", false
	}
	callID = c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return "", "", false
	}
	return actorID, callID, true
}

func (h Handlers) bindSDP(c *gin.Context) (string, bool) {
	var req sdpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return "", false
	}
	if req.SDP == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "sdp required"})
		return "", false
	}
	return req.SDP, true
}

func (h Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownCallee):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrDuplicateOffer),
		errors.Is(err, ErrDuplicateAnswer),
		errors.Is(err, ErrAlreadyRinging):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSessionEnded):
		c.AbortWithStatusJSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("signaling operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

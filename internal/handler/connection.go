package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"techrepair-server/internal/metrics"
	"techrepair-server/internal/middleware"
	"techrepair-server/internal/model"
	"techrepair-server/internal/relay"
	"techrepair-server/internal/store"
)

// Broadcaster is the slice of the relay the HTTP surface needs.
type Broadcaster interface {
	Broadcast(code, event string, data any)
}

type ConnectionHandler struct {
	Store *store.Store
	Relay Broadcaster
	Log   zerolog.Logger
	TTL   time.Duration
}

func millisOrNil(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func connectionJSON(conn model.Connection) gin.H {
	return gin.H{
		"id":          conn.ID,
		"accessCode":  conn.AccessCode,
		"status":      conn.Status,
		"technician":  conn.Technician,
		"permissions": conn.Permissions,
		"startTime":   millisOrNil(conn.StartTime),
		"endTime":     millisOrNil(conn.EndTime),
		"description": conn.Description,
		"createdAt":   conn.CreatedAt,
		"expiresAt":   conn.ExpiresAt,
	}
}

type createConnectionBody struct {
	AccessCode  string                 `json:"accessCode"`
	Status      model.Status           `json:"status"`
	Technician  string                 `json:"technician"`
	Permissions *model.PermissionPatch `json:"permissions"`
	Description string                 `json:"description"`
	ExpiresAt   int64                  `json:"expiresAt"`
}

// Create is the administrative create with caller-supplied fields.
func (h *ConnectionHandler) Create(c *gin.Context) {
	var body createConnectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}

	conn := model.Connection{
		AccessCode:  body.AccessCode,
		Status:      body.Status,
		Technician:  body.Technician,
		Description: body.Description,
		ExpiresAt:   body.ExpiresAt,
	}
	if body.Permissions != nil {
		conn.Permissions = model.Permissions{}.Merge(*body.Permissions)
	}

	created, err := h.Store.Create(conn, time.Now().UnixMilli())
	if err != nil {
		writeStoreError(c, err)
		return
	}
	h.Log.Info().Str("id", created.ID).Str("accessCode", created.AccessCode).Msg("connection created")
	c.JSON(http.StatusCreated, connectionJSON(created))
}

func (h *ConnectionHandler) List(c *gin.Context) {
	conns := h.Store.List()
	resp := make([]gin.H, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, connectionJSON(conn))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConnectionHandler) GetByID(c *gin.Context) {
	conn, ok := h.Store.Get(c.Param("id"))
	if !ok {
		writeStoreError(c, store.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, connectionJSON(conn))
}

type updateConnectionBody struct {
	Technician  *string                `json:"technician"`
	Status      *model.Status          `json:"status"`
	Permissions *model.PermissionPatch `json:"permissions"`
	Description *string                `json:"description"`
	ExpiresAt   *int64                 `json:"expiresAt"`
}

func (h *ConnectionHandler) Update(c *gin.Context) {
	var body updateConnectionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}

	updated, err := h.Store.Update(c.Param("id"), store.UpdatePatch{
		Technician:  body.Technician,
		Status:      body.Status,
		Permissions: body.Permissions,
		Description: body.Description,
		ExpiresAt:   body.ExpiresAt,
	})
	if err != nil {
		writeStoreError(c, err)
		return
	}
	h.Log.Info().Str("id", updated.ID).Msg("connection updated")
	c.JSON(http.StatusOK, connectionJSON(updated))
}

func (h *ConnectionHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if !h.Store.Delete(id) {
		writeStoreError(c, store.ErrNotFound)
		return
	}
	h.Log.Info().Str("id", id).Msg("connection deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Connection deleted"})
}

// Generate creates a session under a freshly minted unique access code.
func (h *ConnectionHandler) Generate(c *gin.Context) {
	conn, err := h.Store.CreateUnique(h.TTL, time.Now().UnixMilli())
	if err != nil {
		h.Log.Error().Err(err).Msg("access code generation failed")
		writeStoreError(c, err)
		return
	}

	metrics.SessionsGenerated.Inc()
	h.Log.Info().Str("accessCode", conn.AccessCode).Int64("expiresAt", conn.ExpiresAt).Msg("session generated")
	c.JSON(http.StatusCreated, gin.H{
		"accessCode": conn.AccessCode,
		"expiresAt":  conn.ExpiresAt,
	})
}

// Validate reports whether a code names an active, unexpired session. The
// store lookup alone decides; an admin-created code of any shape validates.
// It never mutates state.
func (h *ConnectionHandler) Validate(c *gin.Context) {
	conn, err := h.Store.ValidByCode(c.Param("accessCode"), time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"valid": false, "message": "Invalid or expired code", "code": "not_found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"connection": gin.H{
			"accessCode":  conn.AccessCode,
			"permissions": conn.Permissions,
			"status":      conn.Status,
		},
	})
}

type connectBody struct {
	TechnicianID string `json:"technicianId"`
}

// Connect binds a technician to an open session. The first successful bind
// wins; the body may omit technicianId when a bearer token names the caller.
func (h *ConnectionHandler) Connect(c *gin.Context) {
	var body connectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}
	technicianID := body.TechnicianID
	if technicianID == "" {
		technicianID, _ = middleware.TechnicianIDFromContext(c)
	}

	conn, err := h.Store.BindTechnician(c.Param("accessCode"), technicianID, time.Now().UnixMilli())
	if err != nil {
		writeStoreError(c, err)
		return
	}

	metrics.SessionsBound.Inc()
	h.Log.Info().Str("accessCode", conn.AccessCode).Str("technician", conn.Technician).Msg("technician connected")
	c.JSON(http.StatusOK, gin.H{
		"message": "Connection established",
		"connection": gin.H{
			"accessCode":  conn.AccessCode,
			"permissions": conn.Permissions,
			"startTime":   conn.StartTime,
		},
	})
}

type permissionsBody struct {
	Permissions model.PermissionPatch `json:"permissions"`
}

// Permissions merges a partial capability patch and broadcasts the merged set
// to the session's room.
func (h *ConnectionHandler) Permissions(c *gin.Context) {
	var body permissionsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}

	code := c.Param("accessCode")
	merged, err := h.Store.MergePermissions(code, body.Permissions)
	if err != nil {
		writeStoreError(c, err)
		return
	}

	if h.Relay != nil {
		h.Relay.Broadcast(code, relay.EventPermissionsUpdated, gin.H{"permissions": merged})
	}
	c.JSON(http.StatusOK, gin.H{"permissions": merged})
}

type endBody struct {
	Description string `json:"description"`
}

// End completes the session. Terminal: a second call finds nothing active.
func (h *ConnectionHandler) End(c *gin.Context) {
	var body endBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "code": "validation_error"})
		return
	}

	conn, err := h.Store.EndSession(c.Param("accessCode"), body.Description, time.Now().UnixMilli())
	if err != nil {
		writeStoreError(c, err)
		return
	}

	metrics.SessionsCompleted.Inc()
	h.Log.Info().Str("accessCode", conn.AccessCode).Msg("session ended")
	c.JSON(http.StatusOK, gin.H{
		"message": "Session ended",
		"connection": gin.H{
			"accessCode":  conn.AccessCode,
			"startTime":   millisOrNil(conn.StartTime),
			"endTime":     conn.EndTime,
			"description": conn.Description,
		},
	})
}

// History lists completed sessions, newest end first.
func (h *ConnectionHandler) History(c *gin.Context) {
	conns := h.Store.History(c.Query("accessCode"))
	resp := make([]gin.H, 0, len(conns))
	for _, conn := range conns {
		resp = append(resp, gin.H{
			"accessCode":  conn.AccessCode,
			"technician":  conn.Technician,
			"startTime":   millisOrNil(conn.StartTime),
			"endTime":     conn.EndTime,
			"description": conn.Description,
		})
	}
	c.JSON(http.StatusOK, resp)
}

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Flip/internal/app/orch"
	"github.com/dkeye/Flip/internal/core"
	"github.com/dkeye/Flip/internal/domain"
)

type handlers struct {
	orch *orch.Orchestrator
}

type RoomsResponse struct {
	Rooms       []core.RoomInfo `json:"rooms"`
	Connections int             `json:"connections"`
}

type MembersResponse struct {
	Room    string                `json:"room"`
	Members []core.MemberSnapshot `json:"members"`
}

func (h *handlers) ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"actors":      h.orch.Rooms.Live(),
		"connections": h.orch.Registry.Count(),
	})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, RoomsResponse{
		Rooms:       h.orch.Rooms.List(),
		Connections: h.orch.Registry.Count(),
	})
}

func (h *handlers) roomMembers(c *gin.Context) {
	members, ok := h.orch.Rooms.Members(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	room, _ := domain.NormalizeRoomID(c.Param("id"))
	c.JSON(http.StatusOK, MembersResponse{Room: string(room), Members: members})
}

func (h *handlers) evictRoom(c *gin.Context) {
	room, err := domain.NormalizeRoomID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n := h.orch.EvictRoom(room)
	if n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "kicked": n})
}

func (h *handlers) kickMember(c *gin.Context) {
	if !h.orch.KickMember(c.Param("id"), core.SessionID(c.Param("sid"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

package signal

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// roomFromRequest reads the room the socket is opened for. The query wins
// over the X-Flip-Room header used by clients that cannot set a query.
func roomFromRequest(c *gin.Context) string {
	if room := strings.TrimSpace(c.Query("room")); room != "" {
		return room
	}
	return strings.TrimSpace(c.GetHeader("X-Flip-Room"))
}

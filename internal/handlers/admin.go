package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"jamroom/internal/relay"
)

// ListRooms returns every active room with its member count.
func ListRooms(rly *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rly.Rooms()})
	}
}

// GetRoom returns one room's member list. A room with no members does
// not exist, so an empty list always means 404.
func GetRoom(rly *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		members := rly.Members(roomID)
		if len(members) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": roomID, "members": members})
	}
}

// CloseRoom evicts every member and removes the room.
func CloseRoom(rly *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		if !rly.CloseRoom(roomID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		operator, _ := c.Get("user_id")
		log.Info().Str("module", "admin").Str("room", roomID).Any("operator", operator).Msg("room closed by operator")
		c.JSON(http.StatusOK, gin.H{"message": "room closed"})
	}
}

package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"jamroom/internal/ident"
)

// RootRedirect sends visitors of the bare domain to a freshly minted
// room so every shared link starts from a working session URL.
func RootRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/"+ident.NewRoomID())
	}
}

// RoomPage serves the client document for any room path. The page is
// identical for every room; the client reads its room id back out of
// the URL and joins over the websocket.
func RoomPage(staticDir string) gin.HandlerFunc {
	index := filepath.Join(staticDir, "index.html")
	return func(c *gin.Context) {
		c.File(index)
	}
}

package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// handleCreateAuthSession pins the bearer identity of the request into the
// cookie session so browser websockets are authenticated.
func (s *Server) handleCreateAuthSession(c *gin.Context) {
	uid := CurrentUser(c)
	if uid == "" {
		abortError(c, http.StatusUnauthorized, "Sign in required")
		return
	}
	sess := sessions.Default(c)
	sess.Set(userKey, string(uid))
	if err := sess.Save(); err != nil {
		abortError(c, http.StatusInternalServerError, "could not save session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": uid})
}

func (s *Server) handleDeleteAuthSession(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

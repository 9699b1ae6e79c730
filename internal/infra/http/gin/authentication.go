package ginserver

import (
	"log/slog"

	gin "github.com/gin-gonic/gin"

	"noe/internal/app/agent"
)

const workspaceContextKey = "noe.workspace"

// Workspaces yields the signed-in user's workspace.
type Workspaces interface {
	Workspace() (*agent.Workspace, error)
}

// RequireSession aborts with 401 unless a user is signed in and stores the
// workspace on the context for the handlers.
func RequireSession(ws Workspaces, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, err := ws.Workspace()
		if err != nil {
			respondError(c, logger, err, "require session")
			return
		}
		c.Set(workspaceContextKey, w)
		c.Next()
	}
}

func workspace(c *gin.Context, ws Workspaces, logger *slog.Logger) (*agent.Workspace, bool) {
	if v, ok := c.Get(workspaceContextKey); ok {
		if w, ok := v.(*agent.Workspace); ok {
			return w, true
		}
	}
	w, err := ws.Workspace()
	if err != nil {
		respondError(c, logger, err, "load workspace")
		return nil, false
	}
	return w, true
}

package voter

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/vote/fpc"
)

// voteRequest is the JSON body accepted by POST /admin/vote.
type voteRequest struct {
	ID         string `json:"id" binding:"required"`
	ObjectType string `json:"objectType" binding:"required"`
	Opinion    string `json:"opinion" binding:"required"`
}

// newAdminRouter builds the gin engine serving the write surface: manually
// queueing a context for voting. This is intentionally a separate engine
// and bind address from the read-only echo status API (api.go), so the two
// can be firewalled independently in production.
func newAdminRouter(v *fpc.Voter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/admin/vote", func(c *gin.Context) {
		var req voteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		id, err := opinion.IDFromString(req.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		objectType, err := parseObjectType(req.ObjectType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		initial, err := parseOpinion(req.Opinion)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := v.Vote(id, objectType, initial); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id.String()})
	})

	return r
}

func parseOpinion(s string) (opinion.Opinion, error) {
	switch s {
	case "Like":
		return opinion.Like, nil
	case "Dislike":
		return opinion.Dislike, nil
	default:
		return opinion.Unknown, opinion.ErrInvalidOpinion
	}
}

// runAdminServer serves the admin API until ctx is cancelled, then shuts it
// down gracefully.
func runAdminServer(ctx context.Context, v *fpc.Voter) {
	srv := &http.Server{
		Addr:    adminBindAddress(),
		Handler: newAdminRouter(v),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infof("voter: admin API listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Errorf("voter: admin API stopped: %s", err)
	}
}

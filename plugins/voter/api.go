package voter

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo"

	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/vote"
	"github.com/iotaledger/fpc/packages/vote/fpc"
)

// statusResponse is the JSON shape returned by GET /voter/status/:type/:id.
type statusResponse struct {
	ID       string   `json:"id"`
	Opinions []string `json:"opinions"`
	Rounds   uint32   `json:"rounds"`
}

// registerStatusRoutes mounts the read-only status API on the shared echo
// server. It never accepts a vote — only the admin API (admin.go) does.
func registerStatusRoutes(server *echo.Echo, v *fpc.Voter) {
	server.GET("voter/status/:type/:id", func(c echo.Context) error {
		objectType, err := parseObjectType(c.Param("type"))
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		id, err := opinion.IDFromString(c.Param("id"))
		if err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		view, err := v.Status(id, objectType)
		if err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}

		return c.JSON(http.StatusOK, toStatusResponse(view))
	})
}

func toStatusResponse(view vote.View) statusResponse {
	opinions := make([]string, len(view.Opinions))
	for i, o := range view.Opinions {
		opinions[i] = o.String()
	}
	return statusResponse{
		ID:       view.ID.String(),
		Opinions: opinions,
		Rounds:   view.Rounds,
	}
}

func parseObjectType(s string) (opinion.ObjectType, error) {
	switch s {
	case "conflict":
		return opinion.ConflictType, nil
	case "timestamp":
		return opinion.TimestampType, nil
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errUnknownObjectType(s)
		}
		return opinion.ObjectType(n), nil
	}
}

type errUnknownObjectType string

func (e errUnknownObjectType) Error() string {
	return "voter: unknown object type " + string(e)
}

package voter

import (
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo"
	"github.com/markbates/pkger"
)

// dashboardPath is the pkger-addressable path to the bundled static page.
// pkger statically scans for this literal string at build time and embeds
// the file it names into the binary.
const dashboardPath = "/plugins/voter/frontend/index.html"

// registerDashboardRoute mounts the bundled dashboard at GET
// /voter/dashboard on the shared echo server.
func registerDashboardRoute(server *echo.Echo) {
	server.GET("voter/dashboard", func(c echo.Context) error {
		f, err := pkger.Open(dashboardPath)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		defer f.Close()

		body, err := ioutil.ReadAll(f)
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.HTMLBlob(http.StatusOK, body)
	})
}

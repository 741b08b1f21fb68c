package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/podcast-live/internal/handler"
	"github.com/iliyamo/podcast-live/internal/middleware"
)

// RegisterRoutes registers the unauthenticated operational routes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterAuth registers the account routes.  Token exchange lives under
// /auth; /me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token only
	g.POST("/refresh-access", a.RefreshAccess)
	// logout accepts either a refresh token in the body or a bearer token
	g.POST("/logout", a.Logout)

	e.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// LiveOptions carries the middleware wrapped around the public live
// routes.  Nil entries are skipped.
type LiveOptions struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc // public join and listing
	Cache     echo.MiddlewareFunc // GET /live/active only
}

// RegisterLive registers the session lifecycle and the chat socket.
// Static segments (active, mine, ws) take precedence over /live/:id in
// Echo's router.
func RegisterLive(e *echo.Echo, l *handler.LiveHandler, ws *handler.ChatHandler, opt LiveOptions) {
	auth := middleware.JWTAuth(opt.JWTSecret)
	public := compact(opt.RateLimit)

	g := e.Group("/live")
	g.POST("/start", l.Start, auth)
	g.POST("/end/:id", l.End, auth)
	g.GET("/mine", l.Mine, auth)

	g.POST("/join/:id", l.Join, public...)
	g.GET("/active", l.Active, compact(opt.RateLimit, opt.Cache)...)
	g.GET("/:id", l.Get, public...)

	g.GET("/ws", ws.Serve)
}

// RegisterCatalog registers the read-only podcast and category routes.
func RegisterCatalog(e *echo.Echo, c *handler.CatalogHandler) {
	e.GET("/podcasts", c.ListPodcasts)
	e.GET("/podcasts/:id", c.GetPodcast)
	e.GET("/categories", c.ListCategories)
}

// RegisterUploads serves recordings written by local storage.
func RegisterUploads(e *echo.Echo, uploadDir string) {
	e.Static("/uploads", uploadDir)
}

func compact(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := mws[:0:0]
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

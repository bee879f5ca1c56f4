package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/skillforge/skillforge/core"
	broadcastsvc "github.com/skillforge/skillforge/services/broadcast"
)

func registerWS(g *echo.Group, jwt echo.MiddlewareFunc, hub *broadcastsvc.Hub, logger core.Logger) {
	upgrader := broadcastsvc.Upgrader()

	g.GET("/ws", func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "user", claims.UserID(), "err", err)
			return nil
		}
		hub.Serve(claims.UserID(), conn)
		return nil
	}, jwt)

	// live per-student analytics for the admin dashboard
	g.GET("/ws/admin/students/:id", func(ctx echo.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "student", id, "err", err)
			return nil
		}
		hub.Serve(id, conn)
		return nil
	}, jwt, adminRequired)
}

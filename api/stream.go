package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskfolio-api/session"
)

const streamKeepalive = 25 * time.Second

// streamSnapshots serves a Server-Sent Events stream of session snapshots.
// The client receives the current snapshot on connect and a fresh one after
// every mutation; the stream ends when the user signs out. EventSource
// clients cannot set headers, so a token query param is accepted too.
func streamSnapshots(hub Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			if token := c.QueryParam("token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		userID, err := auth.UserIDFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		sess, err := hub.Get(c.Request().Context(), userID)
		if err != nil {
			return c.String(http.StatusServiceUnavailable, "session not ready")
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		updates, cancel := sess.Subscribe()
		defer cancel()

		send := func(snap session.Snapshot) bool {
			data, err := sonic.Marshal(snap)
			if err != nil {
				logger.WithField("user", userID).Errorf("encode snapshot: %v", err)
				return true
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				return false
			}
			if _, err := c.Response().Write(data); err != nil {
				return false
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}

		if !send(session.Snapshot{Tasks: sess.Tasks(), Projects: sess.Projects()}) {
			return nil
		}

		ctx := c.Request().Context()
		ticker := time.NewTicker(streamKeepalive)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case snap, open := <-updates:
				if !open {
					// Signed out.
					return nil
				}
				if !send(snap) {
					return nil
				}
			case <-ticker.C:
				if _, err := c.Response().Write([]byte(": keepalive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

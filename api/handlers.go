package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskfolio-api/domain"
	"taskfolio-api/session"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, hub Sessions, auth Authenticator, deduper Deduper, reminders Reminders, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(hub, auth, logger))
	e.POST("/api/tasks", postTask(hub, auth, deduper, logger))
	e.PATCH("/api/tasks/:id", patchTask(hub, auth, deduper, logger))
	e.DELETE("/api/tasks/:id", deleteTask(hub, auth, deduper, logger))
	e.POST("/api/tasks/:id/toggle", toggleTask(hub, auth, deduper, logger))
	e.GET("/api/tasks/stats", getStats(hub, auth))

	e.GET("/api/projects", getProjects(hub, auth))
	e.POST("/api/projects", postProject(hub, auth, deduper, logger))
	e.PATCH("/api/projects/:id", patchProject(hub, auth, deduper, logger))
	e.DELETE("/api/projects/:id", deleteProject(hub, auth, deduper, logger))

	e.PUT("/api/filters", putFilters(hub, auth))
	e.PUT("/api/view", putView(hub, auth))
	e.DELETE("/api/session", deleteSession(hub, auth))
	e.POST("/api/reminders/scan", scanReminders(hub, auth, reminders, logger))
	e.GET("/api/stream", streamSnapshots(hub, auth, logger))

	e.GET("/healthz", healthz(hub))
}

func healthz(hub Sessions) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, healthResponse{Status: "ok", Sessions: hub.Active()})
	}
}

// requireSession authenticates the request and returns the user's loaded
// session. On failure the response has already been written and the caller
// returns the error as-is.
func requireSession(c echo.Context, hub Sessions, auth Authenticator) (*session.Session, string, error) {
	userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return nil, "", c.String(http.StatusUnauthorized, err.Error())
	}
	sess, err := hub.Get(c.Request().Context(), userID)
	if err != nil {
		return nil, "", c.String(http.StatusServiceUnavailable, "session not ready")
	}
	return sess, userID, nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// replayedMutation reports whether the request carries an already-seen
// Idempotency-Key. Deduper failures are logged and treated as "not seen";
// mutations must not depend on redis being up. The returned rollback forgets
// the key when the mutation is rejected, so a corrected retry may reuse it.
func replayedMutation(c echo.Context, deduper Deduper, logger *log.Logger, userID string) (bool, func()) {
	nop := func() {}
	if deduper == nil {
		return false, nop
	}
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" {
		return false, nop
	}
	ctx := c.Request().Context()
	fresh, err := deduper.Add(ctx, userID, key)
	if err != nil {
		logger.WithField("user", userID).Warnf("deduper unavailable: %v", err)
		return false, nop
	}
	if !fresh {
		return true, nop
	}
	return false, func() {
		if err := deduper.Remove(ctx, userID, key); err != nil {
			logger.WithField("user", userID).Errorf("deduper rollback failed: %v", err)
		}
	}
}

func validationStatus(err error) (int, string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Error()
	}
	return http.StatusInternalServerError, err.Error()
}

// queryFilter builds a filter override from query params, or nil when the
// request supplies none so the session's own filter applies.
func queryFilter(c echo.Context) *domain.FilterOptions {
	params := c.QueryParams()
	override := false
	f := domain.Unfiltered()
	if v, ok := params["search"]; ok && len(v) > 0 {
		f.Search = v[0]
		override = true
	}
	if v, ok := params["priority"]; ok && len(v) > 0 {
		f.Priority = v[0]
		override = true
	}
	if v, ok := params["project"]; ok && len(v) > 0 {
		f.Project = v[0]
		override = true
	}
	if v, ok := params["status"]; ok && len(v) > 0 {
		f.Status = v[0]
		override = true
	}
	if v, ok := params["dateRange"]; ok && len(v) > 0 {
		f.DateRange = v[0]
		override = true
	}
	if !override {
		return nil
	}
	return &f
}

func getTasks(hub Sessions, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		sess, sessErr := hub.Get(spanCtx, userID)
		if sessErr != nil {
			metrics.SetErrorStage("session")
			err = c.String(http.StatusServiceUnavailable, "session not ready")
			return err
		}

		filter := queryFilter(c)
		metrics.SetFiltered(filter != nil)

		queryStart := time.Now()
		tasks := sess.FilteredTasks(filter)
		metrics.ObserveQuery(time.Since(queryStart))
		metrics.SetTasksReturned(len(tasks))

		err = c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		replay, rollback := replayedMutation(c, deduper, logger, userID)
		if replay {
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		}
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			rollback()
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		task, err := sess.AddTask(req.task())
		if err != nil {
			rollback()
			status, msg := validationStatus(err)
			return c.JSON(status, errorResponse{Error: msg})
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func patchTask(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		replay, rollback := replayedMutation(c, deduper, logger, userID)
		if replay {
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		}
		var upd domain.TaskUpdate
		if err := decodeBody(c, &upd); err != nil {
			rollback()
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		task, found, err := sess.UpdateTask(c.Param("id"), upd)
		if err != nil {
			rollback()
			status, msg := validationStatus(err)
			return c.JSON(status, errorResponse{Error: msg})
		}
		if !found {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		if replay, _ := replayedMutation(c, deduper, logger, userID); replay {
			return c.NoContent(http.StatusNoContent)
		}
		sess.DeleteTask(c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	}
}

func toggleTask(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		if replay, _ := replayedMutation(c, deduper, logger, userID); replay {
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		}
		task, found := sess.ToggleTask(c.Param("id"))
		if !found {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func getStats(hub Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		return c.JSON(http.StatusOK, sess.Stats())
	}
}

func getProjects(hub Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		return c.JSON(http.StatusOK, projectsResponse{Projects: sess.Projects()})
	}
}

func postProject(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		replay, rollback := replayedMutation(c, deduper, logger, userID)
		if replay {
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		}
		var req createProjectRequest
		if err := decodeBody(c, &req); err != nil {
			rollback()
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		project, err := sess.AddProject(domain.Project{Name: req.Name, Color: req.Color})
		if err != nil {
			rollback()
			status, msg := validationStatus(err)
			return c.JSON(status, errorResponse{Error: msg})
		}
		return c.JSON(http.StatusCreated, project)
	}
}

func patchProject(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		replay, rollback := replayedMutation(c, deduper, logger, userID)
		if replay {
			return c.JSON(http.StatusOK, duplicateResponse{Duplicate: true})
		}
		var upd domain.ProjectUpdate
		if err := decodeBody(c, &upd); err != nil {
			rollback()
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		project, found := sess.UpdateProject(c.Param("id"), upd)
		if !found {
			return c.NoContent(http.StatusNoContent)
		}
		return c.JSON(http.StatusOK, project)
	}
}

func deleteProject(hub Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		if replay, _ := replayedMutation(c, deduper, logger, userID); replay {
			return c.NoContent(http.StatusNoContent)
		}
		sess.DeleteProject(c.Param("id"))
		return c.NoContent(http.StatusNoContent)
	}
}

func putFilters(hub Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		var f domain.FilterOptions
		if err := decodeBody(c, &f); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		sess.SetFilter(f)
		return c.NoContent(http.StatusNoContent)
	}
}

func putView(hub Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, _, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		var req viewRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if err := sess.SetView(req.View); err != nil {
			status, msg := validationStatus(err)
			return c.JSON(status, errorResponse{Error: msg})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteSession(hub Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		hub.Drop(userID)
		return c.NoContent(http.StatusNoContent)
	}
}

func scanReminders(hub Sessions, auth Authenticator, reminders Reminders, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, userID, errResp := requireSession(c, hub, auth)
		if sess == nil {
			return errResp
		}
		if reminders == nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "reminders not configured"})
		}
		scheduled, err := reminders.Scan(c.Request().Context(), userID, sess.Tasks())
		if err != nil {
			logger.WithField("user", userID).Errorf("reminder scan: %v", err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return c.JSON(http.StatusOK, scanResponse{Scheduled: scheduled, Count: len(scheduled)})
	}
}

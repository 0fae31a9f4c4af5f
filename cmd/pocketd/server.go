package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syssam/pocket"
	"github.com/syssam/pocket/catalog"
	"github.com/syssam/pocket/dialect/sql"
	"github.com/syssam/pocket/dispatch"
	"github.com/syssam/pocket/persist"
	"github.com/syssam/pocket/privacy"
	"github.com/syssam/pocket/record"
)

// server exposes a persist.Service over HTTP.
type server struct {
	svc     *persist.Service
	db      *sql.Driver
	catalog catalog.Source
	bulk    *dispatch.Dispatcher
	log     *slog.Logger
	timeout time.Duration
}

func (s *server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests(), viewer())

	r.GET("/healthz", s.health)
	api := r.Group("/api")
	{
		api.GET("/meta", s.meta)
		api.POST("/:entity/_bulk", s.createBulk)

		api.POST("/:entity", s.create)
		api.GET("/:entity", s.list)
		api.GET("/:entity/:id", s.get)
		api.PATCH("/:entity/:id", s.update)
		api.DELETE("/:entity/:id", s.remove)
	}
	return r
}

func (s *server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// viewer attaches the caller named by the X-Pocket-User and X-Pocket-Roles
// headers. Authentication is left to a fronting proxy.
func viewer() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.GetHeader("X-Pocket-User")
		if user == "" {
			c.Next()
			return
		}
		var roles []string
		for _, r := range strings.Split(c.GetHeader("X-Pocket-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}
		ctx := privacy.WithViewer(c.Request.Context(), &privacy.SimpleViewer{UserID: user, Roles: roles})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.timeout)
}

func (s *server) create(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := s.svc.PersistMap(ctx, s.db, c.Param("entity"), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resultView(res))
}

func (s *server) createBulk(c *gin.Context) {
	var body []map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
		return
	}
	entity := c.Param("entity")
	jobs := make([]dispatch.Job, len(body))
	for i, m := range body {
		rec, err := record.FromMap(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "index": i})
			return
		}
		jobs[i] = dispatch.Job{Entity: entity, Record: rec}
	}
	ctx, cancel := s.ctx(c)
	defer cancel()

	items := make([]gin.H, len(jobs))
	failed := 0
	for _, o := range s.bulk.Run(ctx, jobs) {
		if o.Err != nil {
			failed++
			items[o.Index] = gin.H{"index": o.Index, "status": statusFor(o.Err), "error": o.Err.Error()}
			continue
		}
		items[o.Index] = gin.H{"index": o.Index, "status": http.StatusCreated, "id": o.Result.ID()}
	}
	status := http.StatusOK
	if failed > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"items": items, "failed": failed})
}

func (s *server) list(c *gin.Context) {
	filters := make(map[string]any)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			filters[k] = v[0]
		}
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	rows, err := s.svc.Find(ctx, s.db, c.Param("entity"), filters)
	if err != nil {
		s.fail(c, err)
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *server) get(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	row, err := s.svc.Get(ctx, s.db, c.Param("entity"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *server) update(c *gin.Context) {
	entity := c.Param("entity")
	e, err := s.catalog.Catalog().Get(entity)
	if err != nil {
		s.fail(c, err)
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON", "details": err.Error()})
		return
	}
	rec, err := record.FromMap(body)
	if err != nil {
		s.fail(c, pocket.NewValidationError(entity, "", err))
		return
	}
	pk := e.PrimaryKey()
	if pk == nil {
		s.fail(c, pocket.NewConfigurationError(entity, "no primary key declared"))
		return
	}
	rec[pk.Name] = record.Scalar(c.Param("id"))

	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := s.svc.Update(ctx, s.db, entity, rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.AffectedRows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	row, err := s.svc.Get(ctx, s.db, entity, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *server) remove(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := s.svc.Delete(ctx, s.db, c.Param("entity"), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if res.AffectedRows == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) meta(c *gin.Context) {
	cat := s.catalog.Catalog()
	out := make([]gin.H, 0, cat.Len())
	for _, name := range cat.Entities() {
		e, err := cat.Get(name)
		if err != nil {
			continue
		}
		fields := make([]gin.H, 0, len(e.Fields))
		for _, f := range e.Fields {
			fh := gin.H{
				"name":       f.Name,
				"column":     f.Column,
				"type":       f.Type,
				"primaryKey": f.PrimaryKey,
				"nullable":   f.Nullable,
				"unique":     f.Unique,
			}
			if f.References != nil {
				fh["references"] = gin.H{"table": f.References.Table, "column": f.References.Column}
			}
			fields = append(fields, fh)
		}
		out = append(out, gin.H{
			"name":       e.Name,
			"table":      e.Table,
			"primaryKey": e.PrimaryKeyColumn,
			"children":   cat.Relations(name),
			"fields":     fields,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entities": out})
}

func (s *server) health(c *gin.Context) {
	ctx, cancel := s.ctx(c)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	st := s.svc.QueryStats().Stats()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"dialect":   s.db.Dialect(),
		"execs":     st.TotalExecs,
		"queries":   st.TotalQueries,
		"commits":   st.Commits,
		"rollbacks": st.Rollbacks,
		"slow":      st.SlowQueries,
		"errors":    st.Errors,
	})
}

func (s *server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.ErrorContext(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case pocket.IsNotFound(err):
		return http.StatusNotFound
	case pocket.IsValidationError(err):
		return http.StatusBadRequest
	case privacy.IsDenied(err):
		return http.StatusForbidden
	case pocket.IsConstraintError(err):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type keyView struct {
	Entity    string `json:"entity"`
	Field     string `json:"field"`
	Path      string `json:"path"`
	Value     any    `json:"value"`
	Generated bool   `json:"generated"`
}

func resultView(res *persist.Result) gin.H {
	keys := make([]keyView, len(res.Keys))
	for i, k := range res.Keys {
		keys[i] = keyView{Entity: k.Entity, Field: k.Field, Path: k.Path, Value: k.Value, Generated: k.Generated}
	}
	return gin.H{
		"id":           res.ID(),
		"affectedRows": res.AffectedRows,
		"keys":         keys,
		"record":       res.Record.Map(),
	}
}

// Package server exposes the memory engine over an HTTP JSON API.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/preflect/memsync/memory"
	"github.com/preflect/memsync/syncer"
)

const submitTimeout = 30 * time.Second

// HealthChecker reports reachability of an external collaborator.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Server bundles the engine components behind HTTP handlers. Source,
// tagger, assembler, coordinator and classifier health may each be nil;
// the corresponding behavior degrades instead of failing.
type Server struct {
	index       memory.Index
	source      memory.Source
	tagger      memory.Tagger
	assembler   *memory.Assembler
	coordinator *syncer.Coordinator
	classifier  HealthChecker

	echo *echo.Echo
}

// Options carries the optional collaborators for New.
type Options struct {
	Source      memory.Source
	Tagger      memory.Tagger
	Assembler   *memory.Assembler
	Coordinator *syncer.Coordinator
	Classifier  HealthChecker
}

// New builds the server and registers all routes.
func New(index memory.Index, opts Options) *Server {
	s := &Server{
		index:       index,
		source:      opts.Source,
		tagger:      opts.Tagger,
		assembler:   opts.Assembler,
		coordinator: opts.Coordinator,
		classifier:  opts.Classifier,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.POST("/add_memory", s.handleAddMemory)
	e.POST("/add_memories_batch", s.handleAddBatch)
	e.POST("/search", s.handleSearch)
	e.POST("/profile", s.handleProfile)
	e.POST("/sync", s.handleSync)
	e.GET("/list_users", s.handleListUsers)
	e.GET("/health", s.handleHealth)

	s.echo = e
	return s
}

// Start blocks serving HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

type addMemoryRequest struct {
	UserID string   `json:"user_id"`
	Text   string   `json:"text"`
	Topic  string   `json:"topic"`
	Type   string   `json:"type"`
	Tags   []string `json:"tags"`
}

type addMemoryResponse struct {
	Status           string   `json:"status"`
	Tags             []string `json:"tags,omitempty"`
	AsyncImprovement bool     `json:"async_improvement"`
}

// handleAddMemory stores a memory in the index immediately and forwards it
// to the source in the background. The caller never waits on the source.
func (s *Server) handleAddMemory(c echo.Context) error {
	var req addMemoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" || req.Text == "" {
		return badRequest(c, "user_id and text are required")
	}

	rec := s.buildRecord(c.Request().Context(), req)
	if err := s.index.Upsert(c.Request().Context(), rec); err != nil {
		log.Printf("[SERVER] upsert: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to store memory"})
	}

	async := s.source != nil
	if async {
		go s.submitToSource(rec)
	}
	return c.JSON(http.StatusOK, addMemoryResponse{
		Status:           "stored",
		Tags:             rec.Tags,
		AsyncImprovement: async,
	})
}

func (s *Server) buildRecord(ctx context.Context, req addMemoryRequest) memory.Record {
	topic := memory.Topic(req.Topic)
	if topic == "" {
		topic = memory.InferTopic(req.Text)
	}
	kind := memory.Kind(req.Type)
	if kind == "" {
		kind = memory.KindStable
	}
	tags := req.Tags
	if len(tags) == 0 && s.tagger != nil {
		var err error
		tags, err = s.tagger.Tag(ctx, req.Text)
		if err != nil {
			log.Printf("[SERVER] tagging: %v", err)
			tags = nil
		}
	}
	return memory.Record{
		UserID: req.UserID,
		Text:   req.Text,
		Topic:  topic,
		Kind:   kind,
		Tags:   tags,
	}
}

// submitToSource runs outside the request lifecycle; failures are logged
// only, the index copy already succeeded.
func (s *Server) submitToSource(rec memory.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := s.source.Submit(ctx, rec.UserID, rec.Text); err != nil {
		log.Printf("[SERVER] source submit for %s: %v", rec.UserID, err)
	}
}

type batchMemory struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
	Topic  string `json:"topic"`
	Type   string `json:"type"`
}

type addBatchRequest struct {
	// UserID is the fallback owner for entries that carry none of their own.
	UserID   string        `json:"user_id"`
	Memories []batchMemory `json:"memories"`
}

func (s *Server) handleAddBatch(c echo.Context) error {
	var req addBatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Memories) == 0 {
		return badRequest(c, "memories are required")
	}

	ctx := c.Request().Context()
	var tags [][]string
	if s.tagger != nil {
		texts := make([]string, len(req.Memories))
		for i, m := range req.Memories {
			texts[i] = m.Text
		}
		var err error
		tags, err = s.tagger.TagBatch(ctx, texts)
		if err != nil || len(tags) != len(texts) {
			log.Printf("[SERVER] batch tagging: %v", err)
			tags = nil
		}
	}

	count := 0
	for i, m := range req.Memories {
		userID := m.UserID
		if userID == "" {
			userID = req.UserID
		}
		if userID == "" || m.Text == "" {
			continue
		}
		rec := memory.Record{
			UserID: userID,
			Text:   m.Text,
			Topic:  memory.Topic(m.Topic),
			Kind:   memory.Kind(m.Type),
		}
		if rec.Topic == "" {
			rec.Topic = memory.InferTopic(m.Text)
		}
		if rec.Kind == "" {
			rec.Kind = memory.KindStable
		}
		if tags != nil {
			rec.Tags = tags[i]
		}
		if err := s.index.Upsert(ctx, rec); err != nil {
			log.Printf("[SERVER] batch upsert: %v", err)
			continue
		}
		if s.source != nil {
			go s.submitToSource(rec)
		}
		count++
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "stored", "count": count})
}

type searchRequest struct {
	UserID         string  `json:"user_id"`
	Context        string  `json:"context"`
	Domain         string  `json:"domain"`
	Type           string  `json:"type"`
	Limit          int     `json:"limit"`
	UseClassifiers bool    `json:"use_classifiers"`
	ScoreThreshold float32 `json:"score_threshold"`
}

type searchMemory struct {
	Text  string   `json:"text"`
	Topic string   `json:"topic"`
	Type  string   `json:"type"`
	Score float32  `json:"score"`
	Tags  []string `json:"tags"`
}

func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" || req.Context == "" {
		return badRequest(c, "user_id and context are required")
	}

	q := memory.Query{
		UserID:         req.UserID,
		Text:           req.Context,
		Kind:           memory.Kind(req.Type),
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
		TagVectors:     req.UseClassifiers,
	}
	if req.Domain != "" {
		d, ok := memory.ParseDomain(req.Domain)
		if !ok {
			return badRequest(c, "unknown domain: "+req.Domain)
		}
		q.Topic = d.Topic()
	}

	results, err := s.index.Search(c.Request().Context(), q)
	if err != nil {
		log.Printf("[SERVER] search: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}

	memories := make([]searchMemory, 0, len(results))
	for _, r := range results {
		memories = append(memories, searchMemory{
			Text:  r.Record.Text,
			Topic: string(r.Record.Topic),
			Type:  string(r.Record.Kind),
			Score: r.Score,
			Tags:  r.Record.Tags,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"memories": memories})
}

type profileRequest struct {
	UserID  string `json:"user_id"`
	Context string `json:"context"`
	Domain  string `json:"domain"`
}

func (s *Server) handleProfile(c echo.Context) error {
	if s.assembler == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "profile assembly not configured"})
	}
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}

	var domain memory.Domain
	if req.Domain != "" {
		d, ok := memory.ParseDomain(req.Domain)
		if !ok {
			return badRequest(c, "unknown domain: "+req.Domain)
		}
		domain = d
	}

	profile, err := s.assembler.Assemble(c.Request().Context(), req.UserID, req.Context, domain)
	if err != nil {
		log.Printf("[SERVER] profile: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "profile assembly failed"})
	}
	return c.JSON(http.StatusOK, profile)
}

type syncRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleSync(c echo.Context) error {
	if s.coordinator == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "sync not configured"})
	}
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "user_id is required")
	}
	res, err := s.coordinator.SyncUser(c.Request().Context(), req.UserID)
	if err != nil {
		log.Printf("[SERVER] sync: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sync failed"})
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListUsers(c echo.Context) error {
	stats, err := s.index.ListUsers(c.Request().Context())
	if err != nil {
		log.Printf("[SERVER] list users: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list users"})
	}
	total := 0
	for _, st := range stats {
		total += st.Records
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":          stats,
		"total_users":    len(stats),
		"total_memories": total,
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := echo.Map{"status": "ok"}
	if s.classifier != nil {
		if s.classifier.Healthy(c.Request().Context()) {
			resp["classifier_service"] = "connected"
		} else {
			resp["classifier_service"] = "unreachable"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

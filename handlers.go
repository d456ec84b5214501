package main

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"baken/internal/config"
	"baken/models"
	"baken/pkg/capture"
	"baken/pkg/ticket"
)

var ErrSessionNotFound = eris.New("scan session not found")

// Scan sessions idle for longer than SessionTTL are dropped. When
// MaxSessions are open, creating one drops the least recently used.
const (
	SessionTTL  = 30 * time.Minute
	MaxSessions = 1000
)

// server carries the HTTP API state. Scan sessions live in memory only.
type server struct {
	rec      *recorder
	detector *capture.Detector
	secret   []byte
	noise    config.DecoderConfig
	log      *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*scanSession
}

// scanSession guards a capture.Session, which is not safe for concurrent use.
type scanSession struct {
	mu       sync.Mutex
	s        *capture.Session
	lastUsed time.Time // guarded by server.mu
}

func newServer(rec *recorder, detector *capture.Detector, secret []byte, noise config.DecoderConfig, log *zap.Logger) *server {
	if log == nil {
		log = zap.NewNop()
	}
	return &server{
		rec:      rec,
		detector: detector,
		secret:   secret,
		noise:    noise,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*scanSession),
	}
}

func (s *server) setupRoutes(r *gin.Engine) {
	r.GET("/healthz", healthHandler)
	authGroup := r.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.POST("/decode", s.decodeHandler)
	authGroup.POST("/sessions", s.createSessionHandler)
	authGroup.GET("/sessions/:id", s.getSessionHandler)
	authGroup.DELETE("/sessions/:id", s.deleteSessionHandler)
	authGroup.POST("/sessions/:id/fragments", s.addFragmentHandler)
	authGroup.POST("/sessions/:id/frames", s.addFrameHandler)
	authGroup.POST("/tickets", s.createTicketHandler)
	authGroup.GET("/tickets", s.listTicketsHandler)
	authGroup.GET("/tickets/:id", s.getTicketHandler)
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		subject, err := parseToken(s.secret, authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Set("subject", subject)
		c.Next()
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError maps structural errors to 400 and missing records to 404.
func (s *server) respondError(c *gin.Context, err error) {
	switch {
	case eris.Is(err, ticket.ErrMalformed), eris.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case eris.Is(err, ErrTicketNotFound), eris.Is(err, ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type decodeRequest struct {
	Code      string   `json:"code"`
	Fragments []string `json:"fragments"`
}

func (s *server) decodeHandler(c *gin.Context) {
	var req decodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := decodeInput(req.Code, req.Fragments)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if res.Rejected() {
		c.JSON(http.StatusUnprocessableEntity, res)
		return
	}
	logOutcome(s.log, res.Code, *res.Outcome)
	c.JSON(http.StatusOK, res)
}

func (s *server) createSessionHandler(c *gin.Context) {
	sess := capture.NewSession(
		capture.WithLogger(s.log),
		capture.WithNoise(s.noise.FirstNoise, s.noise.SecondNoise),
	)
	s.mu.Lock()
	now := s.now()
	s.evictLocked(now, true)
	s.sessions[sess.ID] = &scanSession{s: sess, lastUsed: now}
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID})
}

func (s *server) session(id string) (*scanSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictLocked(now, false)
	entry, ok := s.sessions[id]
	if !ok {
		return nil, eris.Wrapf(ErrSessionNotFound, "session %s", id)
	}
	entry.lastUsed = now
	return entry, nil
}

// evictLocked drops expired sessions and, when room is needed at capacity,
// the least recently used one. s.mu must be held.
func (s *server) evictLocked(now time.Time, room bool) {
	var oldest string
	for id, entry := range s.sessions {
		if now.Sub(entry.lastUsed) > SessionTTL {
			delete(s.sessions, id)
			s.log.Info("scan session expired", zap.String("session", id))
			continue
		}
		if oldest == "" || entry.lastUsed.Before(s.sessions[oldest].lastUsed) {
			oldest = id
		}
	}
	if room && len(s.sessions) >= MaxSessions && oldest != "" {
		delete(s.sessions, oldest)
		s.log.Info("scan session evicted", zap.String("session", oldest))
	}
}

func (s *server) getSessionHandler(c *gin.Context) {
	entry, err := s.session(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	entry.mu.Lock()
	state := entry.s.State()
	entry.mu.Unlock()
	c.JSON(http.StatusOK, state)
}

func (s *server) deleteSessionHandler(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		s.respondError(c, eris.Wrapf(ErrSessionNotFound, "session %s", id))
		return
	}
	c.Status(http.StatusNoContent)
}

type fragmentRequest struct {
	Digits  string `json:"digits" binding:"required"`
	Engine  string `json:"engine"`
	Profile string `json:"profile"`
}

// acceptResponse reports one read. Ticket and Outcome are set once the
// read completed the session.
type acceptResponse struct {
	Detected bool                 `json:"detected"`
	Event    capture.Event        `json:"event"`
	Ticket   *models.Ticket       `json:"ticket,omitempty"`
	Outcome  *ticket.ParseOutcome `json:"outcome,omitempty"`
	Created  bool                 `json:"created,omitempty"`
}

func (s *server) addFragmentHandler(c *gin.Context) {
	entry, err := s.session(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req fragmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.accept(c, entry, req.Digits, ticket.CaptureMeta{Engine: req.Engine, Profile: req.Profile}, "")
}

func (s *server) addFrameHandler(c *gin.Context) {
	entry, err := s.session(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if s.detector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no detection engine configured"})
		return
	}
	fh, err := c.FormFile("frame")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open frame"})
		return
	}
	defer f.Close()
	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame is not a supported image"})
		return
	}
	det, err := s.detector.Detect(c.Request.Context(), img)
	if eris.Is(err, capture.ErrNoCode) {
		c.JSON(http.StatusOK, acceptResponse{Event: capture.Event{Kind: capture.EventIgnored}})
		return
	}
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.accept(c, entry, det.Text, det.Meta, fh.Filename)
}

// accept feeds one read into the session. A completing read is decoded,
// saved and published, then the session is reset for the next ticket.
func (s *server) accept(c *gin.Context, entry *scanSession, raw string, meta ticket.CaptureMeta, file string) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	ev := entry.s.Accept(raw, meta)
	resp := acceptResponse{Detected: true, Event: ev}
	if ev.Kind == capture.EventRejected {
		s.log.Info("fragment rejected", zap.String("session", entry.s.ID), zap.String("reason", string(ev.Reason)))
	}
	if ev.Kind != capture.EventCompleted {
		c.JSON(http.StatusOK, resp)
		return
	}

	var files []string
	if file != "" {
		files = []string{"", file}
	}
	res, err := s.rec.Record(c.Request.Context(), ev.Code, "session:"+entry.s.ID, scanSources(entry.s.Halves(), files...))
	if err != nil {
		// not stored; the client scans both halves again
		entry.s.Discard()
		s.respondError(c, err)
		return
	}
	entry.s.Reset()
	resp.Ticket, resp.Outcome, resp.Created = res.Ticket, &res.Outcome, res.Created
	c.JSON(http.StatusOK, resp)
}

type ticketRequest struct {
	Code   string `json:"code" binding:"required"`
	Source string `json:"source"`
}

func (s *server) createTicketHandler(c *gin.Context) {
	var req ticketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	source := req.Source
	if source == "" {
		source = "api"
	}
	res, err := s.rec.Record(c.Request.Context(), capture.CleanDigits(req.Code), source, nil)
	if err != nil {
		s.respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (s *server) listTicketsHandler(c *gin.Context) {
	limit := DefaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	tickets, err := s.rec.store.List(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

func (s *server) getTicketHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ticket id"})
		return
	}
	t, err := s.rec.store.Get(c.Request.Context(), uint(id))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

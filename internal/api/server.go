package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/david/tender-finder/internal/auth"
	"github.com/david/tender-finder/internal/db"
	"github.com/david/tender-finder/internal/models"
	"github.com/david/tender-finder/internal/scrape"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Registry    *scrape.Registry
	Echo        *echo.Echo
	DB          *pgxpool.Pool

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
	jobs       []*backgroundJob // most recent first
}

// jobHistoryLimit caps the in-memory job list; older entries fall off.
const jobHistoryLimit = 20

type backgroundJob struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminTokenOnce    sync.Once
	adminTokenRuntime string
	adminTokenErr     error
)

func NewServer(pool *pgxpool.Pool, registry *scrape.Registry) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Token"},
	}))

	s := &Server{
		DB:          pool,
		Store:       db.NewStore(pool),
		AuthService: auth.NewService(pool),
		Registry:    registry,
		Echo:        e,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/opportunities", s.handleListOpportunities)
	api.GET("/sources", s.handleGetSources)
	api.GET("/runs", s.handleGetRuns)

	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	me := api.Group("/me")
	me.Use(auth.Middleware)
	me.GET("", s.handleMe)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/scrape/:source", s.handleTriggerScrape)
	admin.GET("/jobs", s.handleListJobs)
	admin.GET("/job/:id", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleListOpportunities(c echo.Context) error {
	limit := 20
	offset := 0
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		offset = o
	}

	result, err := s.Store.ListOpportunities(c.Request().Context(), db.ListParams{
		Source: c.QueryParam("source"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.Logger().Errorf("Failed to list opportunities: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetSources(c echo.Context) error {
	type sourceInfo struct {
		Key    string `json:"key"`
		Label  string `json:"label"`
		Driver string `json:"driver"`
		URL    string `json:"list_url"`
	}
	out := make([]sourceInfo, 0, len(s.Registry.Portals))
	for _, p := range s.Registry.Portals {
		out = append(out, sourceInfo{Key: p.Key, Label: p.Label, Driver: p.Driver, URL: p.ListURL})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetRuns(c echo.Context) error {
	limit := 10
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleMe(c echo.Context) error {
	userID, err := auth.GetUserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	return c.JSON(http.StatusOK, map[string]string{"id": userID.String()})
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrUserExists {
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req auth.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	resp, err := s.AuthService.Login(c.Request().Context(), req)
	if err != nil {
		if err == auth.ErrInvalidCreds {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// handleTriggerScrape starts one scrape run in the background and
// returns 202 with a job id to poll. Only one job runs at a time; the
// shared browser cannot serve two runs.
func (s *Server) handleTriggerScrape(c echo.Context) error {
	source := c.Param("source")
	if source != "all" {
		if _, err := s.Registry.Get(source); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
	}

	maxItems := 0
	if v, err := strconv.Atoi(c.QueryParam("max_items")); err == nil && v > 0 {
		maxItems = v
	}

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A scrape job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from the HTTP lifecycle; the run
	// timeout inside RunJob bounds it.
	jobCtx, jobCancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Source:    source,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobs = append([]*backgroundJob{job}, s.jobs...)
	if len(s.jobs) > jobHistoryLimit {
		s.jobs = s.jobs[:jobHistoryLimit]
	}
	s.jobMu.Unlock()

	opts := scrape.Options{
		Source:        source,
		MaxItems:      maxItems,
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		Headless:      true,
	}

	go func() {
		defer jobCancel()

		runID := uuid.New().String()
		if err := s.Store.StartRun(jobCtx, runID, source, opts.WebhookURL); err != nil {
			log.Printf("[scrape-job %s] could not record run: %v", jobID, err)
		}

		result, err := scrape.RunJob(jobCtx, s.Registry, opts, s.Store)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		job.EndedAt = time.Now()
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			_ = s.Store.CompleteRun(context.WithoutCancel(jobCtx), runID, "failed", models.RunSummary{Source: source})
			log.Printf("[scrape-job %s] failed: %v", jobID, err)
			return
		}

		job.Status = "completed"
		job.Result = result.Summary
		if err := s.Store.CompleteRun(context.WithoutCancel(jobCtx), runID, "completed", result.Summary); err != nil {
			log.Printf("[scrape-job %s] could not complete run row: %v", jobID, err)
		}
		log.Printf("[scrape-job %s] completed: %d items", jobID, result.Summary.ItemsFound)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Scrape job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/v1/admin/job/%s", jobID),
	})
}

func (s *Server) handleListJobs(c echo.Context) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	out := make([]map[string]interface{}, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, jobView(job))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	for _, job := range s.jobs {
		if job.ID == queried {
			return c.JSON(http.StatusOK, jobView(job))
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
}

func jobView(job *backgroundJob) map[string]interface{} {
	resp := map[string]interface{}{
		"id":         job.ID,
		"source":     job.Source,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return resp
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

// adminMiddleware guards the trigger routes. Either credential works:
// the static admin token (header or bearer), or a valid user JWT.
func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, err := adminToken()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		if c.Request().Header.Get("X-Admin-Token") == token {
			return next(c)
		}
		if bearer, ok := auth.BearerToken(c); ok {
			if bearer == token {
				return next(c)
			}
			if _, err := auth.ParseToken(bearer); err == nil {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminToken() (string, error) {
	adminTokenOnce.Do(func() {
		token := strings.TrimSpace(os.Getenv("ADMIN_TOKEN"))
		if token != "" {
			adminTokenRuntime = token
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminTokenErr = fmt.Errorf("failed to generate ADMIN_TOKEN fallback: %w", err)
			return
		}

		adminTokenRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_TOKEN is not set; using ephemeral in-memory fallback token")
	})

	if adminTokenErr != nil {
		return "", adminTokenErr
	}
	if adminTokenRuntime == "" {
		return "", fmt.Errorf("admin token unavailable")
	}

	return adminTokenRuntime, nil
}

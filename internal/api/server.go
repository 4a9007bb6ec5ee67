package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/theodi/contract-radar/internal/auth"
	"github.com/theodi/contract-radar/internal/db"
	"github.com/theodi/contract-radar/internal/hubspot"
	"github.com/theodi/contract-radar/internal/ingest"
	"github.com/theodi/contract-radar/internal/models"
	"github.com/theodi/contract-radar/internal/rating"
)

type Server struct {
	Store       *db.Store
	AuthService *auth.Service
	Pipeline    *ingest.Pipeline
	Engine      *rating.Engine
	Coordinator *rating.Coordinator
	HubSpot     *hubspot.Client // nil when HUBSPOT_API_KEY is not set
	Echo        *echo.Echo
	DB          *pgxpool.Pool

	// DefaultKeywords back manual searches when no keyword is given and
	// no organisation profile exists.
	DefaultKeywords []string
}

func NewServer(pool *pgxpool.Pool, pipeline *ingest.Pipeline, engine *rating.Engine, coordinator *rating.Coordinator, hubspotClient *hubspot.Client, defaultKeywords []string) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Store:           db.NewStore(pool),
		AuthService:     auth.NewService(pool),
		Pipeline:        pipeline,
		Engine:          engine,
		Coordinator:     coordinator,
		HubSpot:         hubspotClient,
		Echo:            e,
		DB:              pool,
		DefaultKeywords: defaultKeywords,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.POST("/auth/signup", s.handleSignup)
	api.POST("/auth/login", s.handleLogin)

	// Everything beyond auth requires a valid token.
	protected := api.Group("")
	protected.Use(auth.Middleware)

	protected.GET("/contracts", s.handleListContracts)
	protected.GET("/contracts/:itemId", s.handleGetContract)
	protected.POST("/contracts/search", s.handleSearch)
	protected.POST("/contracts/initial-import", s.handleInitialImport)
	protected.POST("/contracts/rate/:itemId", s.handleRateContract)
	protected.POST("/contracts/rate-all", s.handleRateAll)
	protected.POST("/contracts/:itemId/reviewer-rating", s.handleReviewerRating)
	protected.POST("/contracts/:itemId/hubspot-deal", s.handleCreateDeal)
	protected.GET("/contracts/:itemId/hubspot-deal", s.handleGetDeal)
	protected.GET("/organisation", s.handleGetOrganisation)
	protected.PUT("/organisation", s.handlePutOrganisation)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (s *Server) handleSignup(c echo.Context) error {
	var req auth.SignupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
	}

	resp, err := s.AuthService.Signup(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUserExists) {
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
		if errors.Is(err, auth.ErrInvalidCreds) {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListContracts(c echo.Context) error {
	params := db.ListParams{
		MatchesOnly: c.QueryParam("matches_only") == "true",
		Limit:       100,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 1000 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}

	contracts, err := s.Store.ListContracts(c.Request().Context(), params)
	if err != nil {
		c.Logger().Errorf("Failed to list contracts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(contracts),
		"contracts": contracts,
	})
}

func (s *Server) handleGetContract(c echo.Context) error {
	contract, err := s.Store.GetContract(c.Request().Context(), c.Param("itemId"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Contract not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, contract)
}

type searchRequest struct {
	Keyword string `json:"keyword"`
}

// handleSearch runs one on-demand ingestion pass. An empty keyword
// falls back to the organisation's search keywords, then the
// configured defaults.
func (s *Server) handleSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	ctx := c.Request().Context()
	keywords := []string{strings.TrimSpace(req.Keyword)}
	if keywords[0] == "" {
		keywords = s.DefaultKeywords
		if org, err := s.Store.GetOrganisation(ctx); err == nil && len(org.SearchKeywords) > 0 {
			keywords = org.SearchKeywords
		}
	}

	stats, err := s.Pipeline.Ingest(ctx, keywords)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":  "Search complete",
		"keywords": keywords,
		"stats":    stats,
	})
}

func (s *Server) handleInitialImport(c echo.Context) error {
	result, err := s.Pipeline.CheckAndRunInitialImport(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRateContract(c echo.Context) error {
	itemID := c.Param("itemId")

	aiRating, err := s.Engine.Rate(c.Request().Context(), itemID)
	if err != nil {
		switch {
		case errors.Is(err, rating.ErrContractNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Contract not found"})
		case errors.Is(err, rating.ErrNoOrganisation):
			return c.JSON(http.StatusConflict, map[string]string{"error": "No organisation profile configured"})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"itemId": itemID,
		"rating": aiRating,
	})
}

// handleRateAll kicks off a batch rating run. An already-running batch
// returns 200 with skipped: true rather than an error.
func (s *Server) handleRateAll(c echo.Context) error {
	result, err := s.Coordinator.RateAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}

type reviewerRatingRequest struct {
	Score     int    `json:"score"`
	Relevance string `json:"relevance"`
	Comments  string `json:"comments"`
}

func (s *Server) handleReviewerRating(c echo.Context) error {
	ctx := c.Request().Context()
	itemID := c.Param("itemId")

	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req reviewerRatingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Score < 0 || req.Score > 10 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Score must be between 0 and 10"})
	}
	if !models.ValidRelevance(req.Relevance) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Relevance must be one of: " + strings.Join(models.RelevanceBands, ", ")})
	}

	user, err := s.AuthService.GetUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	reviewerRating := models.ReviewerRating{
		Score:        req.Score,
		Relevance:    req.Relevance,
		Comments:     req.Comments,
		RatedAt:      nowUTC(),
		RatedBy:      user.ID.String(),
		ReviewerName: user.DisplayNameOrEmail(),
	}

	if err := s.Store.ApplyReviewerRating(ctx, itemID, reviewerRating); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Contract not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"itemId":         itemID,
		"reviewerRating": reviewerRating,
	})
}

func (s *Server) handleCreateDeal(c echo.Context) error {
	if s.HubSpot == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "HubSpot integration is not configured"})
	}

	ctx := c.Request().Context()
	itemID := c.Param("itemId")

	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}
	user, err := s.AuthService.GetUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	contract, err := s.Store.GetContract(ctx, itemID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Contract not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if contract.HubSpotDeal != nil {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "A deal already exists for this contract",
			"deal":  contract.HubSpotDeal,
		})
	}

	if existing, err := s.HubSpot.FindExistingDeal(ctx, itemID); err == nil && existing != nil {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "A deal already exists for this contract in HubSpot",
			"dealId": existing.ID,
		})
	}

	deal, err := s.HubSpot.CreateDeal(ctx, contract, user.DisplayNameOrEmail())
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	if err := s.Store.SetHubSpotDeal(ctx, itemID, *deal); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"itemId": itemID,
		"deal":   deal,
	})
}

func (s *Server) handleGetDeal(c echo.Context) error {
	if s.HubSpot == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "HubSpot integration is not configured"})
	}

	ctx := c.Request().Context()

	contract, err := s.Store.GetContract(ctx, c.Param("itemId"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Contract not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if contract.HubSpotDeal == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No deal linked to this contract"})
	}

	// A CRM outage should not hide the stored link; serve what we have.
	live, err := s.HubSpot.GetDeal(ctx, contract.HubSpotDeal.DealID)
	if err != nil {
		c.Logger().Warnf("HubSpot deal fetch failed for %s: %v", contract.HubSpotDeal.DealID, err)
		return c.JSON(http.StatusOK, map[string]interface{}{
			"stored": contract.HubSpotDeal,
		})
	}

	refreshed := *contract.HubSpotDeal
	refreshed.DealStage = live.Stage
	refreshed.DealAmount = live.Amount
	refreshed.LastSynced = nowUTC()
	if err := s.Store.SetHubSpotDeal(ctx, contract.ItemID, refreshed); err != nil {
		c.Logger().Errorf("Failed to persist refreshed deal for %s: %v", contract.ItemID, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"stored": refreshed,
		"live":   live,
	})
}

func (s *Server) handleGetOrganisation(c echo.Context) error {
	org, err := s.Store.GetOrganisation(c.Request().Context())
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "No organisation profile configured"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, org)
}

func (s *Server) handlePutOrganisation(c echo.Context) error {
	var org models.Organisation
	if err := c.Bind(&org); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if strings.TrimSpace(org.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Organisation name is required"})
	}

	// Clients may send list fields as one comma-separated string.
	org.Capabilities = splitCSVEntries(org.Capabilities)
	org.Interests = splitCSVEntries(org.Interests)
	org.Exclusions = splitCSVEntries(org.Exclusions)
	org.SearchKeywords = splitCSVEntries(org.SearchKeywords)

	if err := s.Store.UpsertOrganisation(c.Request().Context(), org); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	saved, err := s.Store.GetOrganisation(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, saved)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// splitCSVEntries flattens entries that are themselves comma-separated
// into trimmed non-empty strings.
func splitCSVEntries(entries []string) []string {
	var result []string
	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/coffee-scan/internal/auth"
	"github.com/example/coffee-scan/internal/upload"
	"github.com/example/coffee-scan/internal/usecase"
)

// MaxUploadSize bounds a single image upload.
const MaxUploadSize = 10 << 20

// Config carries the dependencies the HTTP layer is wired with.
type Config struct {
	Scans    *usecase.ScanUseCase
	Users    *usecase.UserUseCase
	Sessions *auth.Sessions
	Tokens   *auth.Tokens
	Stager   *upload.Stager
	// ViewsDir holds the static pages.
	ViewsDir string
	// UploadsDir, when set, is served at /uploads (filesystem artifact
	// store only; the S3 store serves its own URLs).
	UploadsDir string
	Logger     *zap.Logger
}

type registerForm struct {
	Name            string `form:"name" binding:"required"`
	Email           string `form:"email" binding:"required,email"`
	Password        string `form:"password" binding:"required,password"`
	ConfirmPassword string `form:"confirmPassword" binding:"required"`
}

type loginForm struct {
	Email    string `form:"email" binding:"required,email"`
	Password string `form:"password" binding:"required"`
}

type apiLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, cfg Config) {
	requireAuth := auth.RequireAuth(cfg.Sessions, cfg.Tokens)
	requirePage := auth.RequirePage(cfg.Sessions, cfg.Tokens)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/users/login")
	})
	router.GET("/users/login", servePage(cfg.ViewsDir, "login.html"))
	router.GET("/users/register", servePage(cfg.ViewsDir, "register.html"))
	router.StaticFile("/styles.css", filepath.Join(cfg.ViewsDir, "styles.css"))

	pages := router.Group("/users", requirePage)
	for _, page := range []string{"dashboard", "scan", "history", "about", "profile"} {
		pages.GET("/"+page, servePage(cfg.ViewsDir, page+".html"))
	}

	if cfg.UploadsDir != "" {
		router.Static("/uploads", cfg.UploadsDir)
	}

	router.POST("/users/register", registerHandler(cfg))
	router.POST("/users/login", loginHandler(cfg))
	router.GET("/users/logout", logoutHandler(cfg))
	router.POST("/api/auth/login", apiLoginHandler(cfg))

	router.GET("/api/user", requireAuth, currentUserHandler(cfg))
	router.POST("/users/scan/predict", requireAuth, predictHandler(cfg))
	router.GET("/api/scan/:id", requireAuth, scanResultHandler(cfg))
	router.GET("/api/scan-history", requireAuth, scanHistoryHandler(cfg))
	router.GET("/api/metrics", requireAuth, metricsHandler(cfg))
}

func servePage(viewsDir, name string) gin.HandlerFunc {
	page := filepath.Join(viewsDir, name)
	return func(c *gin.Context) {
		c.File(page)
	}
}

func registerHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form registerForm
		if err := c.ShouldBind(&form); err != nil {
			redirectWithMessage(c, "/users/register", "error_msg", "Invalid registration details")
			return
		}

		err := cfg.Users.Register(c.Request.Context(), form.Name, form.Email, form.Password, form.ConfirmPassword)
		switch {
		case errors.Is(err, usecase.ErrPasswordMismatch):
			redirectWithMessage(c, "/users/register", "error_msg", "Passwords do not match")
		case errors.Is(err, usecase.ErrEmailTaken):
			redirectWithMessage(c, "/users/register", "error_msg", "Email already registered")
		case err != nil:
			cfg.Logger.Error("registration failed", zap.Error(err))
			redirectWithMessage(c, "/users/register", "error_msg", "Something went wrong")
		default:
			redirectWithMessage(c, "/users/login", "success_msg", "Registered successfully")
		}
	}
}

func loginHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form loginForm
		if err := c.ShouldBind(&form); err != nil {
			redirectWithMessage(c, "/users/login", "error", "Invalid credentials")
			return
		}

		user, err := cfg.Users.Login(c.Request.Context(), form.Email, form.Password)
		if err != nil {
			if !errors.Is(err, usecase.ErrInvalidCredentials) {
				cfg.Logger.Error("login failed", zap.Error(err))
			}
			redirectWithMessage(c, "/users/login", "error", "Invalid credentials")
			return
		}

		if err := cfg.Sessions.SignIn(c.Writer, c.Request, user.ID); err != nil {
			cfg.Logger.Error("failed to establish session", zap.Error(err))
			redirectWithMessage(c, "/users/login", "error", "Something went wrong")
			return
		}
		c.Redirect(http.StatusFound, "/users/dashboard")
	}
}

func logoutHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := cfg.Sessions.SignOut(c.Writer, c.Request); err != nil {
			cfg.Logger.Error("logout failed", zap.Error(err))
		}
		redirectWithMessage(c, "/users/login", "success_msg", "Logged out successfully")
	}
}

func apiLoginHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req apiLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "email and password are required"})
			return
		}

		user, err := cfg.Users.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if !errors.Is(err, usecase.ErrInvalidCredentials) {
				cfg.Logger.Error("api login failed", zap.Error(err))
			}
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid credentials"})
			return
		}

		token, err := cfg.Tokens.Issue(user.ID)
		if err != nil {
			cfg.Logger.Error("failed to issue token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func currentUserHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		user, err := cfg.Users.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"name": user.Name})
	}
}

func predictHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Please upload an image"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "image too large"})
			return
		}

		stagedPath, stagedName, err := cfg.Stager.Stage(file)
		if err != nil {
			if errors.Is(err, upload.ErrUnsupportedFileType) {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Only image files are allowed"})
				return
			}
			cfg.Logger.Error("failed to stage upload", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to accept upload"})
			return
		}

		resp, err := cfg.Scans.Submit(c.Request.Context(), userID, stagedPath, stagedName)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "predictions": resp})
	}
}

func scanResultHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())
		scanID := c.Param("id")
		if scanID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "id is required"})
			return
		}

		record, err := cfg.Scans.Result(c.Request.Context(), userID, scanID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"scan": gin.H{
				"scan_id":         record.ScanID,
				"image_path":      record.ImagePath,
				"flavor":          record.Flavor,
				"aroma":           record.Aroma,
				"body":            record.Body,
				"acidity":         record.Acidity,
				"overall_quality": record.OverallQuality,
				"created_at":      record.CreatedAt,
			},
		})
	}
}

func scanHistoryHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := auth.GetUserID(c.Request.Context())

		history, err := cfg.Scans.History(c.Request.Context(), userID)
		if err != nil {
			cfg.Logger.Error("failed to fetch scan history", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch scan history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "history": history})
	}
}

func metricsHandler(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := cfg.Scans.GetMetricsSummary(c.Request.Context())
		if err != nil {
			cfg.Logger.Error("failed to aggregate metrics", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "metrics": summary})
	}
}

func redirectWithMessage(c *gin.Context, path, key, message string) {
	c.Redirect(http.StatusFound, path+"?"+key+"="+url.QueryEscape(message))
}

package auth

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalantsika/lalantsika_backend/config"
	"github.com/lalantsika/lalantsika_backend/models"
	"github.com/lalantsika/lalantsika_backend/utils"
)

const lockDuration = 15 * time.Minute

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// LoginHandler authenticates manager accounts. Failed attempts count
// against the configurable limit; hitting it locks the identity out
// for a while regardless of which replica served the attempts.
func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "identifier and password are required",
			})
			return
		}
		ctx := c.Request.Context()
		logger := config.GetLogger()

		locked, err := models.IsLoginLocked(ctx, req.Identifier)
		if err != nil {
			config.LogError(logger, "auth", "LoginHandler", "check lock", req.Identifier, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
			return
		}
		if locked {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "too many failed attempts, try again later",
			})
			return
		}

		user, err := models.GetUserByIdentifier(ctx, req.Identifier)
		if err != nil {
			if !errors.Is(err, utils.ErrorRecordNotFound) {
				config.LogError(logger, "auth", "LoginHandler", "load user", req.Identifier, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
				return
			}
			registerFailure(c, req.Identifier)
			return
		}

		if err := utils.ComparePassword(user.Password, req.Password); err != nil {
			registerFailure(c, req.Identifier)
			return
		}

		if err := models.ResetLoginAttempts(ctx, req.Identifier); err != nil {
			config.LogError(logger, "auth", "LoginHandler", "reset attempts", req.Identifier, err)
		}

		userType := ""
		if user.UserTypeId != nil {
			if ut, err := models.GetUserTypeById(ctx, *user.UserTypeId); err == nil {
				userType = ut.Label
			}
		}

		token, err := utils.JwtGenerate(user.ID, userType)
		if err != nil {
			config.LogError(logger, "auth", "LoginHandler", "generate token", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
			return
		}

		if err := config.SetRedisValue("Token:"+token, user.Identifier, tokenLifespan()); err != nil {
			config.LogError(logger, "auth", "LoginHandler", "cache session", user.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "login failed"})
			return
		}

		user.PrepareGive()
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"token":     token,
			"name":      user.Name,
			"user_type": userType,
		})
	}
}

// LogoutHandler drops the caller's session from the redis cache. The
// jwt itself stays valid until expiry but no replica will accept it
// once the cache entry is gone.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := utils.GetTokenFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "no active session"})
			return
		}
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			config.LogError(config.GetLogger(), "auth", "LogoutHandler", "drop session", nil, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "logout failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out"})
	}
}

// registerFailure answers the same way for a missing account and a bad
// password, and advances the identity's attempt counter either way.
func registerFailure(c *gin.Context, identifier string) {
	ctx := c.Request.Context()
	logger := config.GetLogger()

	maxAttempts := models.DefaultMaxAttempts
	if settings, err := models.GetSettings(ctx); err == nil {
		maxAttempts = settings.MaxTentatives
	}

	nowLocked, err := models.RegisterFailedLogin(ctx, identifier, maxAttempts, lockDuration)
	if err != nil {
		config.LogError(logger, "auth", "registerFailure", "register attempt", identifier, err)
	}
	if nowLocked {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": "too many failed attempts, try again later",
		})
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": "invalid credentials",
	})
}

func tokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

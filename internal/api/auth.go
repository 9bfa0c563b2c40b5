package api

import (
	"net/http" // HTTP status codes

	"ledger_system/internal/config" // Application configuration
	"ledger_system/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// Request struct for token issuance
type TokenRequest struct {
	Username string `json:"username" binding:"required"` // Operator username must be provided
	Password string `json:"password" binding:"required"` // Operator password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// TokenHandler authenticates the operator against the configured credentials
// and returns a JWT for the ledger endpoints
func TokenHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Check the operator username
		if req.Username != cfg.OperatorUser {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare the password against the configured bcrypt hash
		if err := bcrypt.CompareHashAndPassword([]byte(cfg.OperatorPassHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Issue the token
		token, err := utils.GenerateJWT(req.Username, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}

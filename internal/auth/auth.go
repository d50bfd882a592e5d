package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stellarion/auction-api/pkg/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid player credentials")
	ErrTokenGeneration    = errors.New("failed to generate token")
)

// Test players
var (
	TestUsername = "commander-zero"
	TestPassword = "test-password"
	TestClan     = "NOVA"
)

// Credentials represents a player's login credentials
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Clan     string `json:"clan,omitempty"`
}

type playerRecord struct {
	password string
	clan     string
}

// Service handles player authentication for the marketplace API
type Service struct {
	jwtSecret []byte
	// In the full game this is resolved by the player identity service;
	// here a registry stands in for it.
	players map[string]playerRecord
}

// NewService creates a new authentication service with the given JWT secret
func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		players:   make(map[string]playerRecord),
	}
}

// GenerateToken generates a JWT token for valid player credentials
// The token carries the username and clan tag with 24-hour expiration
func (s *Service) GenerateToken(creds Credentials) (*TokenResponse, error) {
	player, ok := s.players[creds.Username]
	if !ok || player.password != creds.Password {
		return nil, ErrInvalidCredentials
	}

	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		Username: creds.Username,
		Clan:     player.clan,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, ErrTokenGeneration
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
// Verifies token signature and expiration
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RegisterPlayer registers player credentials (for testing/demo purposes)
func (s *Service) RegisterPlayer(username, password, clan string) {
	s.players[username] = playerRecord{password: password, clan: clan}
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GenerateTokenHandler handles POST requests to generate JWT tokens
// Request body should contain player credentials
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var creds Credentials
		if err := c.ShouldBindJSON(&creds); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(creds)
		if err == ErrInvalidCredentials {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// GetUsername extracts the player username from JWT claims
// Returns empty string if the username is not found or invalid
func GetUsername(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if username, ok := jwtClaims["username"].(string); ok {
			return username
		}
	}
	return ""
}

// GetClan extracts the player's clan tag from JWT claims
func GetClan(claims interface{}) string {
	if jwtClaims, ok := claims.(jwt.MapClaims); ok {
		if clan, ok := jwtClaims["clan"].(string); ok {
			return clan
		}
	}
	return ""
}

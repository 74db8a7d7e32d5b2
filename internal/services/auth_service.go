package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"travelapp/internal/domain"
	"travelapp/internal/domain/models"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	adminTokenTTL = 12 * time.Hour
	RoleAdmin     = "admin"
)

var errInvalidCredentials = domain.AuthenticationError{Msg: "invalid email or password"}

type AuthService struct {
	AdminRepo repositories.AdminRepository
	Secret    []byte
	RequestID string
	Now       func() time.Time
}

type AdminClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (s AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

func (s AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, domain.ValidationError{Field: "email", Msg: "email and password are required"}
	}
	user, err := s.AdminRepo.GetByEmail(ctx, email)
	if err != nil {
		if domain.IsNotFound(err) {
			return LoginResult{}, errInvalidCredentials
		}
		return LoginResult{}, domain.InternalError{Msg: "failed to load user", Err: err}
	}
	if !user.Active {
		return LoginResult{}, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		utils.LogEvent(s.RequestID, "auth", "login", "password mismatch for user_id="+strconv.FormatInt(user.ID, 10))
		return LoginResult{}, errInvalidCredentials
	}

	token, expires, err := s.issue(user)
	if err != nil {
		return LoginResult{}, domain.InternalError{Msg: "failed to sign token", Err: err}
	}
	var out LoginResult
	out.Token = token
	out.ExpiresAt = expires
	out.User.ID = user.ID
	out.User.Email = user.Email
	out.User.Name = user.Name
	out.User.Role = user.Role
	utils.LogEvent(s.RequestID, "auth", "login", fmt.Sprintf("user_id=%d", user.ID))
	return out, nil
}

func (s AuthService) issue(user models.AdminUser) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(adminTokenTTL)
	claims := AdminClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	return signed, expires, err
}

// ParseToken validates an admin bearer token and returns who it belongs to.
func (s AuthService) ParseToken(raw string) (domain.RequestContext, error) {
	var claims AdminClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.RequestContext{}, domain.AuthenticationError{Msg: "token expired"}
		}
		return domain.RequestContext{}, domain.AuthenticationError{Msg: "invalid token"}
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return domain.RequestContext{}, domain.AuthenticationError{Msg: "invalid token subject"}
	}
	return domain.RequestContext{UserID: id, Email: claims.Email, Role: claims.Role}, nil
}

// HashPassword is used when seeding admin users.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", domain.ValidationError{Field: "password", Msg: "must be at least 8 characters"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

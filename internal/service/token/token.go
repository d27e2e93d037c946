package token

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mstepanov/clothes_shop/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

type TokenService struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

func SignAccessToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func SignRefreshToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func SaveRefreshToken(db *gorm.DB, rawToken string, userID uint, role string) error {
	stored := models.RefreshToken{
		Token:     rawToken,
		UserID:    userID,
		Role:      role,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
	}
	if err := db.Create(&stored).Error; err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// SubjectID extracts the user id from the `sub` claim. json numbers decode
// as float64, so anything else in `sub` is a foreign token.
func SubjectID(claims jwt.MapClaims) (uint, error) {
	sub, ok := claims["sub"].(float64)
	if !ok || sub < 0 {
		return 0, errors.New("token subject is not a user id")
	}
	return uint(sub), nil
}

// ParseAccess validates an access token and returns its claims.
func ParseAccess(rawToken string, secret []byte) (jwt.MapClaims, error) {
	t, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	return claims, nil
}

// ValidateRefresh checks signature, the refresh type marker and the stored
// row (revocation + expiry).
func ValidateRefresh(rawToken string, secret []byte, db *gorm.DB) (jwt.MapClaims, error) {
	t, err := jwt.Parse(rawToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	if typ, ok := claims["typ"]; !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}

	var stored models.RefreshToken
	if err := db.Where("token = ?", rawToken).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("refresh token not found")
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, errors.New("refresh token expired")
	}

	return claims, nil
}

// RotateToken exchanges a valid refresh token for a fresh access/refresh
// pair, revoking the old refresh token.
func (t *TokenService) RotateToken(rawToken string) (string, string, jwt.MapClaims, error) {
	claims, err := ValidateRefresh(rawToken, t.RefreshSecret, t.DB)
	if err != nil {
		return "", "", nil, err
	}

	userID, err := SubjectID(claims)
	if err != nil {
		return "", "", nil, err
	}
	role, _ := claims["role"].(string)

	newAccess, err := SignAccessToken(userID, role, t.JWTSecret)
	if err != nil {
		return "", "", nil, err
	}
	newRefresh, err := SignRefreshToken(userID, role, t.RefreshSecret)
	if err != nil {
		return "", "", nil, err
	}

	if err := t.DB.Model(&models.RefreshToken{}).
		Where("token = ?", rawToken).
		Update("revoked", true).Error; err != nil {
		return "", "", nil, err
	}
	if err := SaveRefreshToken(t.DB, newRefresh, userID, role); err != nil {
		return "", "", nil, err
	}

	return newAccess, newRefresh, claims, nil
}

// CheckCookie returns a usable access token for the request, rotating via
// the refresh cookie when the access cookie is missing or expired. The
// second return value is non-empty only when a new refresh token was
// issued and must be set on the response.
func (t *TokenService) CheckCookie(c echo.Context) (string, string, jwt.MapClaims, error) {
	asCookie, err := c.Cookie("accessToken")
	if err == nil && asCookie.Value != "" {
		claims, parseErr := ParseAccess(asCookie.Value, t.JWTSecret)
		if parseErr == nil {
			return asCookie.Value, "", claims, nil
		}
		if !errors.Is(parseErr, jwt.ErrTokenExpired) {
			return "", "", nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
	}

	rfCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	newAccess, newRefresh, claims, err := t.RotateToken(rfCookie.Value)
	if err != nil {
		return "", "", nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return newAccess, newRefresh, claims, nil
}

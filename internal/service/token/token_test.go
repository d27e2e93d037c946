package token

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mstepanov/clothes_shop/internal/config"
	"github.com/mstepanov/clothes_shop/internal/models"
)

var (
	jwtSecret     = []byte("unit-test-jwt-secret")
	refreshSecret = []byte("unit-test-refresh-secret")
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))
	return &TokenService{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	raw, err := SignAccessToken(7, "admin", jwtSecret)
	require.NoError(t, err)

	claims, err := ParseAccess(raw, jwtSecret)
	require.NoError(t, err)
	require.Equal(t, float64(7), claims["sub"])
	require.Equal(t, "admin", claims["role"])
}

func TestParseAccessRejectsWrongSecret(t *testing.T) {
	raw, err := SignAccessToken(7, "user", jwtSecret)
	require.NoError(t, err)

	_, err = ParseAccess(raw, []byte("other-secret"))
	require.Error(t, err)
}

func TestValidateRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestService(t)

	// An access token signed with the refresh secret still lacks the
	// refresh type marker.
	raw, err := SignAccessToken(7, "user", refreshSecret)
	require.NoError(t, err)

	_, err = ValidateRefresh(raw, refreshSecret, svc.DB)
	require.Error(t, err)
}

func TestValidateRefreshUnknownToken(t *testing.T) {
	svc := newTestService(t)

	raw, err := SignRefreshToken(7, "user", refreshSecret)
	require.NoError(t, err)

	// Signed but never saved.
	_, err = ValidateRefresh(raw, refreshSecret, svc.DB)
	require.Error(t, err)
}

func TestValidateRefreshRevoked(t *testing.T) {
	svc := newTestService(t)

	raw, err := SignRefreshToken(7, "user", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, raw, 7, "user"))
	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).
		Where("token = ?", raw).
		Update("revoked", true).Error)

	_, err = ValidateRefresh(raw, refreshSecret, svc.DB)
	require.Error(t, err)
}

func TestValidateRefreshExpiredRow(t *testing.T) {
	svc := newTestService(t)

	raw, err := SignRefreshToken(7, "user", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, raw, 7, "user"))
	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).
		Where("token = ?", raw).
		Update("expires_at", time.Now().Add(-time.Hour).Unix()).Error)

	_, err = ValidateRefresh(raw, refreshSecret, svc.DB)
	require.Error(t, err)
}

func TestRotateTokenRevokesOldAndSavesNew(t *testing.T) {
	svc := newTestService(t)

	raw, err := SignRefreshToken(3, "user", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, raw, 3, "user"))

	newAccess, newRefresh, claims, err := svc.RotateToken(raw)
	require.NoError(t, err)
	require.NotEmpty(t, newAccess)
	require.NotEmpty(t, newRefresh)
	require.NotEqual(t, raw, newRefresh)
	require.Equal(t, float64(3), claims["sub"])

	accessClaims, err := ParseAccess(newAccess, jwtSecret)
	require.NoError(t, err)
	require.Equal(t, float64(3), accessClaims["sub"])

	var old models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", raw).First(&old).Error)
	require.True(t, old.Revoked)

	_, err = ValidateRefresh(newRefresh, refreshSecret, svc.DB)
	require.NoError(t, err)

	// The revoked token cannot be rotated a second time.
	_, _, _, err = svc.RotateToken(raw)
	require.Error(t, err)
}

func TestSubjectID(t *testing.T) {
	id, err := SubjectID(jwt.MapClaims{"sub": float64(12)})
	require.NoError(t, err)
	require.Equal(t, uint(12), id)

	_, err = SubjectID(jwt.MapClaims{"sub": "not-a-number"})
	require.Error(t, err)

	_, err = SubjectID(jwt.MapClaims{})
	require.Error(t, err)

	_, err = SubjectID(jwt.MapClaims{"sub": float64(-1)})
	require.Error(t, err)
}

func TestRotateTokenNonNumericSubject(t *testing.T) {
	svc := newTestService(t)

	// Validly signed refresh token whose subject is not a user id.
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "service-account",
		"typ": "refresh",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(refreshSecret)
	require.NoError(t, err)
	require.NoError(t, svc.DB.Create(&models.RefreshToken{
		Token:     raw,
		UserID:    0,
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).Error)

	_, _, _, err = svc.RotateToken(raw)
	require.Error(t, err)
}

func TestRefreshTokenCarriesTypeMarker(t *testing.T) {
	raw, err := SignRefreshToken(3, "user", refreshSecret)
	require.NoError(t, err)

	parsed, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return refreshSecret, nil })
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "refresh", claims["typ"])
}

package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// issuer はトークンの発行者名。
const issuer = "tracker"

// DefaultTokenTTL はトークンの既定の有効期間。
const DefaultTokenTTL = 24 * time.Hour

// コンテキストキー。
const (
	keyUserID      = "user_id"
	keyEmail       = "email"
	keyDisplayName = "display_name"
	keyRole        = "role"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
type JWTClaims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name,omitempty"`
	// Role はユーザーの権限（member または admin）。
	Role string `json:"role,omitempty"`
}

// Identity はトークンに載せる利用者の情報。
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
	Role        string
}

// GenerateJWT は利用者の情報からJWTトークンを生成する。ttlが0以下の場合はDefaultTokenTTLを使う。
func GenerateJWT(secret string, id Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("ユーザーIDが空です")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
		Role:        id.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークンを検証してクレームを返す。HS256以外の署名は受け付けない。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("トークンが無効です")
	}
	return claims, nil
}

// JWTAuth はJWTトークンを検証するGinミドルウェアを返す。
// トークンはAuthorizationヘッダー（Bearer）から読む。
// EventSourceはヘッダーを付けられないため、ヘッダーが無い場合はaccess_tokenクエリパラメータも受け付ける。
// 検証に成功した場合、コンテキストにユーザーID、メールアドレス、表示名、権限を設定する。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(keyUserID, claims.UserID)
		c.Set(keyEmail, claims.Email)
		c.Set(keyDisplayName, claims.DisplayName)
		c.Set(keyRole, claims.Role)
		c.Next()
	}
}

// bearerToken はリクエストからトークンを取り出す。取り出せない場合は401で中断してfalseを返す。
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("access_token"); q != "" {
			return q, true
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Authorizationヘッダーが必要です",
		})
		return "", false
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "Bearer トークン形式が不正です",
		})
		return "", false
	}
	return tokenString, true
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// JWTAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(keyUserID)
}

// GetEmail はGinコンテキストからメールアドレスを取得する。
func GetEmail(c *gin.Context) string {
	return c.GetString(keyEmail)
}

// GetDisplayName はGinコンテキストから表示名を取得する。
func GetDisplayName(c *gin.Context) string {
	return c.GetString(keyDisplayName)
}

// GetRole はGinコンテキストから権限を取得する。
func GetRole(c *gin.Context) string {
	return c.GetString(keyRole)
}

// SetIdentity はコンテキストに利用者の情報を設定する。テストや開発用の認証で使う。
func SetIdentity(c *gin.Context, id Identity) {
	c.Set(keyUserID, id.UserID)
	c.Set(keyEmail, id.Email)
	c.Set(keyDisplayName, id.DisplayName)
	c.Set(keyRole, id.Role)
}

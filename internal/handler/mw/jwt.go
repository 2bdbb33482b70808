package mw

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	tokenTTL  = 24 * time.Hour
	splitSize = 2
)

var secretKey []byte

type playerCtxKeyType int

const playerCtxKey playerCtxKeyType = iota

type customClaims struct {
	PlayerID int    `json:"player_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

func SetSecretKey(key []byte) {
	secretKey = key
}

func GenerateJWT(playerID int, name string) (string, error) {
	claims := customClaims{
		PlayerID: playerID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secretKey)
}

func JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secretKey) == 0 {
			http.Error(w, `{"errors":"jwt secret not configured"}`, http.StatusInternalServerError)
			return
		}
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", splitSize)
		if len(parts) != splitSize || parts[0] != "Bearer" {
			http.Error(w, `{"errors":"invalid token format"}`, http.StatusUnauthorized)
			return
		}
		tokenStr := parts[1]
		token, err := jwt.ParseWithClaims(tokenStr, &customClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, http.ErrNoCookie
			}
			return secretKey, nil
		})
		if err != nil {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		claims, ok := token.Claims.(*customClaims)
		if !ok || !token.Valid {
			http.Error(w, `{"errors":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), playerCtxKey, claims.PlayerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func MustGetPlayerID(ctx context.Context) int {
	val := ctx.Value(playerCtxKey)
	if val == nil {
		return 0
	}
	return val.(int)
}

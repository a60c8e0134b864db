package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims, mesajlaşma sunucusunun verdiği access token'ın payload'ı.
//
// Client token'ı doğrulamaz (imza anahtarı sunucudadır); sadece oturumun
// hangi kullanıcıya ait olduğunu ve süresinin dolup dolmadığını okur.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

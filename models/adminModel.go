package models

type LoginData struct {
	Password string `json:"password" binding:"required"`
}

type AdminToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

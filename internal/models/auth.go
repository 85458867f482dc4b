package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims is the payload of tokens issued by the identity service. This
// subsystem only reads them; issuing and refreshing live elsewhere.
type AdminClaims struct {
	AdminID     string `json:"admin_id"`
	TenantScope string `json:"tenant_scope"`
	jwt.RegisteredClaims
}

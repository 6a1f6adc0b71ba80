package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"permit-service/internal/model"
)

var ErrUnknownRole = errors.New("unknown role")

type Claims struct {
	UserID uuid.UUID      `json:"sub"`
	Role   model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Principal() model.Principal {
	return model.Principal{UserID: c.UserID, Role: c.Role}
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == uuid.Nil {
		return nil, jwt.ErrTokenInvalidClaims
	}
	switch claims.Role {
	case model.UserRoleCitizen, model.UserRoleFiscal, model.UserRoleManager, model.UserRoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	return claims, nil
}

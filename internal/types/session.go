package types

import "time"

type BackendKind string

const (
	BackendRemote BackendKind = "remote"
	BackendLocal  BackendKind = "local"
)

type Session struct {
	Token    string      `json:"token"`
	User     User        `json:"user"`
	Backend  BackendKind `json:"backend,omitempty"`
	IssuedAt time.Time   `json:"issued_at"`
}

type Credentials struct {
	Email    string `json:"username" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"-"`
}

type LoginResult struct {
	Token    string `json:"access_token"`
	Type     string `json:"token_type,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

package domain

import "time"

// Roles carried on the identity snapshot and captured by connections at
// handshake time.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// FirstPublicUserID is the lowest public user id; registration assigns
// sequential ids from here (the internal row id stays private).
const FirstPublicUserID = 7000

// User is a registered account of the complaint portal.
type User struct {
	ID           int // internal row id
	UserID       int // public sequential id (7000+)
	FullName     string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles a user can register with.
const (
	RoleBuyer  = "Buyer"
	RoleSeller = "Seller"
)

// User is an account. Password always holds the bcrypt hash, never the
// plain text, and is omitted from JSON output.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	FirstName   string             `bson:"firstName" json:"firstName"`
	LastName    string             `bson:"lastName" json:"lastName"`
	Email       string             `bson:"email" json:"email"`
	PhoneNumber int64              `bson:"phoneNumber" json:"phoneNumber"`
	Role        string             `bson:"role" json:"role"`
	Password    string             `bson:"password" json:"-"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// CanonicalRole maps a role name to its stored spelling, matching
// case-insensitively. ok is false for unknown roles.
func CanonicalRole(role string) (canonical string, ok bool) {
	switch {
	case strings.EqualFold(role, RoleBuyer):
		return RoleBuyer, true
	case strings.EqualFold(role, RoleSeller):
		return RoleSeller, true
	}
	return "", false
}

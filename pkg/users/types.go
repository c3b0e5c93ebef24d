package users

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches a lookup
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when creating a user whose email already exists
	ErrEmailTaken = errors.New("email already registered")
)

// AuthMethod records how a user signs in
type AuthMethod string

const (
	AuthMethodEmail  AuthMethod = "email"
	AuthMethodGoogle AuthMethod = "google"
)

// User is an account holder
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         *string    `json:"name"`
	PasswordHash *string    `json:"-"`
	AuthMethod   AuthMethod `json:"authMethod"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SubscriptionView is the subscription summary embedded in a user view
type SubscriptionView struct {
	Status   string `json:"subscriptionStatus"`
	PlanID   string `json:"planId"`
	PlanName string `json:"planName,omitempty"`
}

// View is the user representation returned to clients
type View struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Name         *string           `json:"name"`
	Subscription *SubscriptionView `json:"stripeData"`
}

// Store persists users
type Store interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	View(ctx context.Context, id string) (*View, error)
	ListIDs(ctx context.Context) ([]string, error)
}

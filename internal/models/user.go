package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles.
const (
	RoleUser      = "user"
	RolePublisher = "publisher"
	RoleAdmin     = "admin"
)

// SocialLinks is the canonical social profile schema. Legacy clients send two
// differently shaped payloads ("links" from the detail view and "social" from
// the list view); both are adapted into this struct at the handler boundary.
type SocialLinks struct {
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
	Twitter   string `json:"twitter,omitempty"`
	Facebook  string `json:"facebook,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
}

// User represents a creator account on the platform.
type User struct {
	ID       string `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Username string `json:"username" gorm:"uniqueIndex;type:varchar(100)"`
	Email    string `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password string `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"`
	Role     string `json:"role" gorm:"type:varchar(20);default:user"`

	Bio      string      `json:"bio" gorm:"type:varchar(250)" validate:"omitempty,max=250"`
	Location string      `json:"location,omitempty"`
	Category string      `json:"category,omitempty"`
	Social   SocialLinks `json:"social" gorm:"serializer:json"`

	ProfilePic    string `json:"profilePic"`
	ProfilePicKey string `json:"-" gorm:"type:varchar(255)"`

	// TotalTeas is a denormalized counter of teas received; credited inside
	// the payment-completion transaction.
	TotalTeas int `json:"totalTeas"`

	ResetPasswordToken  string     `json:"-" gorm:"index;type:varchar(64)"`
	ResetPasswordExpire *time.Time `json:"-"`

	gorm.Model // Embed gorm.Model for CreatedAt, UpdatedAt, DeletedAt
}

// PublicView strips fields a creator page should never expose.
func (u *User) PublicView() map[string]interface{} {
	return map[string]interface{}{
		"name":       u.Name,
		"username":   u.Username,
		"bio":        u.Bio,
		"location":   u.Location,
		"category":   u.Category,
		"social":     u.Social,
		"profilePic": u.ProfilePic,
		"totalTeas":  u.TotalTeas,
	}
}

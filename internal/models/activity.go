package models

import "time"

// Action types recorded in the activity log.
const (
	ActionAccountCreated        = "account_created"
	ActionLogin                 = "login"
	ActionLogout                = "logout"
	ActionProfileUpdateName     = "profile_update_name"
	ActionProfileUpdateBio      = "profile_update_bio"
	ActionProfileUpdateSocial   = "profile_update_social"
	ActionProfilePictureUpload  = "profile_picture_upload"
	ActionProfilePictureDelete  = "profile_picture_delete"
	ActionPasswordChange        = "password_change"
	ActionPasswordResetRequest  = "password_reset_request"
	ActionPasswordResetComplete = "password_reset_complete"
	ActionAccountDeleted        = "account_deleted"
	ActionTeaReceived           = "tea_received"
)

// Activity is an immutable record of an account event. Records are only ever
// created, or bulk-deleted by the owning user's clear-history operation.
type Activity struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID     string    `json:"userId" gorm:"type:varchar(36);index:idx_activities_user_created,priority:1"`
	ActionType string    `json:"action" gorm:"type:varchar(50)"`
	IPAddress  string    `json:"ipAddress" gorm:"type:varchar(45)"`
	UserAgent  string    `json:"userAgent" gorm:"type:varchar(255)"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"timestamp" gorm:"index:idx_activities_user_created,priority:2,sort:desc"`
}

var actionDescriptions = map[string]string{
	ActionLogin:                 "User logged in to account",
	ActionLogout:                "User logged out of account",
	ActionAccountCreated:        "Created a new account",
	ActionProfileUpdateName:     "User changed display name",
	ActionProfileUpdateBio:      "Updated bio",
	ActionProfileUpdateSocial:   "Updated social links",
	ActionProfilePictureUpload:  "User uploaded profile picture",
	ActionProfilePictureDelete:  "User removed profile picture",
	ActionPasswordChange:        "Changed password",
	ActionPasswordResetRequest:  "Requested password reset",
	ActionPasswordResetComplete: "Reset password",
	ActionAccountDeleted:        "Deleted account",
	ActionTeaReceived:           "Received a tea from a supporter",
}

// ActionDescription returns a human-readable description for an action type.
func ActionDescription(actionType string) string {
	if d, ok := actionDescriptions[actionType]; ok {
		return d
	}
	return "Performed an action"
}

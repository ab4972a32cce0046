package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/pkg/mediastore"
)

var (
	// ErrBioTooLong enforces the 250 character profile bio limit.
	ErrBioTooLong = errors.New("bio cannot be more than 250 characters")
	// ErrMediaDisabled is returned when no object store is configured.
	ErrMediaDisabled = errors.New("media storage is not configured")
	// ErrNoProfilePicture is returned when deleting a picture that isn't there.
	ErrNoProfilePicture = errors.New("no profile picture to delete")
)

const maxBioLength = 250

// MediaStore is the object storage surface the profile service needs.
// Implemented by pkg/mediastore against any S3-compatible backend.
type MediaStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// ProfileUpdate carries a combined profile edit. Nil pointer fields were not
// present in the request and leave the stored value untouched.
type ProfileUpdate struct {
	Name   string
	Bio    *string
	Social *models.SocialLinks
}

// ProfileService handles creator profile reads and edits.
type ProfileService struct {
	userRepo repositories.UserRepository
	media    MediaStore
}

// NewProfileService creates a new ProfileService. media may be nil, which
// disables picture uploads.
func NewProfileService(userRepo repositories.UserRepository, media MediaStore) *ProfileService {
	return &ProfileService{
		userRepo: userRepo,
		media:    media,
	}
}

// Get loads a user's own profile.
func (s *ProfileService) Get(userID string) (*models.User, error) {
	return s.userRepo.GetByID(userID)
}

// GetCreator loads the public view of a creator by username slug.
func (s *ProfileService) GetCreator(username string) (*models.User, error) {
	return s.userRepo.GetByUsername(username)
}

// ListCreators returns a name-sorted page of creators plus the total count.
func (s *ProfileService) ListCreators(page, limit int) ([]models.User, int64, error) {
	return s.userRepo.List(page, limit)
}

// Update applies a combined profile edit and reports which action types
// actually changed, so the caller can log one activity per changed field.
func (s *ProfileService) Update(userID string, upd ProfileUpdate) (*models.User, []string, error) {
	if upd.Bio != nil && len(*upd.Bio) > maxBioLength {
		return nil, nil, ErrBioTooLong
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, nil, err
	}

	var actions []string
	if upd.Name != "" && upd.Name != user.Name {
		user.Name = upd.Name
		actions = append(actions, models.ActionProfileUpdateName)
	}
	if upd.Bio != nil && *upd.Bio != user.Bio {
		user.Bio = *upd.Bio
		actions = append(actions, models.ActionProfileUpdateBio)
	}
	if upd.Social != nil {
		user.Social = mergeSocial(user.Social, *upd.Social)
		actions = append(actions, models.ActionProfileUpdateSocial)
	}

	if len(actions) == 0 {
		return user, nil, nil
	}
	if err := s.userRepo.Update(user); err != nil {
		return nil, nil, err
	}
	return user, actions, nil
}

// UpdateBio replaces only the bio. An empty string clears it; exactly 250
// characters is accepted, 251 is not.
func (s *ProfileService) UpdateBio(userID, bio string) (*models.User, error) {
	if len(bio) > maxBioLength {
		return nil, ErrBioTooLong
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Bio = bio
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateSocial merges new social links into the stored canonical set.
func (s *ProfileService) UpdateSocial(userID string, social models.SocialLinks) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	user.Social = mergeSocial(user.Social, social)
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadProfilePicture stores a new picture in the object store and swaps
// the user's picture reference. The previous object is deleted best-effort.
func (s *ProfileService) UploadProfilePicture(ctx context.Context, userID, contentType string, body io.Reader) (*models.User, error) {
	if s.media == nil {
		return nil, ErrMediaDisabled
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	key := mediastore.ObjectKey("avatars")
	url, err := s.media.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile picture: %w", err)
	}

	if user.ProfilePicKey != "" {
		if err := s.media.Delete(ctx, user.ProfilePicKey); err != nil {
			log.Printf("Warning: failed to delete previous profile picture %s: %v", user.ProfilePicKey, err)
		}
	}

	user.ProfilePic = url
	user.ProfilePicKey = key
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteProfilePicture removes the stored object and clears the reference.
func (s *ProfileService) DeleteProfilePicture(ctx context.Context, userID string) (*models.User, error) {
	if s.media == nil {
		return nil, ErrMediaDisabled
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user.ProfilePic == "" || user.ProfilePicKey == "" {
		return nil, ErrNoProfilePicture
	}

	if err := s.media.Delete(ctx, user.ProfilePicKey); err != nil {
		return nil, fmt.Errorf("failed to delete profile picture: %w", err)
	}

	user.ProfilePic = ""
	user.ProfilePicKey = ""
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// mergeSocial overlays non-empty incoming fields onto the stored links, the
// same merge the legacy API applied to its two payload shapes.
func mergeSocial(old, incoming models.SocialLinks) models.SocialLinks {
	merged := old
	if incoming.Instagram != "" {
		merged.Instagram = incoming.Instagram
	}
	if incoming.YouTube != "" {
		merged.YouTube = incoming.YouTube
	}
	if incoming.Twitter != "" {
		merged.Twitter = incoming.Twitter
	}
	if incoming.Facebook != "" {
		merged.Facebook = incoming.Facebook
	}
	if incoming.Portfolio != "" {
		merged.Portfolio = incoming.Portfolio
	}
	return merged
}

package services_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
)

// mockMediaStore is an in-memory services.MediaStore.
type mockMediaStore struct {
	objects map[string]string
	deleted []string
}

func newMockMediaStore() *mockMediaStore {
	return &mockMediaStore{objects: make(map[string]string)}
}

func (m *mockMediaStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.objects[key] = string(data)
	return "http://media.test/" + key, nil
}

func (m *mockMediaStore) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func TestProfileService_UpdateBio_Boundary(t *testing.T) {
	mockRepo := new(MockUserRepository)
	profileService := services.NewProfileService(mockRepo, nil)

	user := &models.User{ID: "user-123"}

	// Exactly 250 characters is accepted.
	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	bio := strings.Repeat("a", 250)
	updated, err := profileService.UpdateBio(user.ID, bio)
	assert.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)
	mockRepo.AssertExpectations(t)

	// 251 characters is rejected before any repository access.
	_, err = profileService.UpdateBio(user.ID, strings.Repeat("a", 251))
	assert.True(t, errors.Is(err, services.ErrBioTooLong))

	// An empty bio clears the stored one.
	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()
	updated, err = profileService.UpdateBio(user.ID, "")
	assert.NoError(t, err)
	assert.Empty(t, updated.Bio)
	mockRepo.AssertExpectations(t)
}

func TestProfileService_UpdateSocial_Merges(t *testing.T) {
	mockRepo := new(MockUserRepository)
	profileService := services.NewProfileService(mockRepo, nil)

	user := &models.User{
		ID: "user-123",
		Social: models.SocialLinks{
			Instagram: "https://instagram.com/old",
			YouTube:   "https://youtube.com/@old",
		},
	}

	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	updated, err := profileService.UpdateSocial(user.ID, models.SocialLinks{
		Instagram: "https://instagram.com/new",
		Twitter:   "https://twitter.com/new",
	})
	assert.NoError(t, err)
	// Provided fields override, omitted fields survive.
	assert.Equal(t, "https://instagram.com/new", updated.Social.Instagram)
	assert.Equal(t, "https://twitter.com/new", updated.Social.Twitter)
	assert.Equal(t, "https://youtube.com/@old", updated.Social.YouTube)
	mockRepo.AssertExpectations(t)
}

func TestProfileService_Update_ReportsChangedFields(t *testing.T) {
	mockRepo := new(MockUserRepository)
	profileService := services.NewProfileService(mockRepo, nil)

	user := &models.User{ID: "user-123", Name: "Old Name", Bio: "old bio"}

	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	newBio := "new bio"
	updated, actions, err := profileService.Update(user.ID, services.ProfileUpdate{
		Name: "New Name",
		Bio:  &newBio,
	})
	assert.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "new bio", updated.Bio)
	assert.ElementsMatch(t, []string{models.ActionProfileUpdateName, models.ActionProfileUpdateBio}, actions)
	mockRepo.AssertExpectations(t)

	// A no-op update never writes and reports no actions.
	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	_, actions, err = profileService.Update(user.ID, services.ProfileUpdate{Name: "New Name"})
	assert.NoError(t, err)
	assert.Empty(t, actions)
	mockRepo.AssertExpectations(t)

	// An oversized bio is rejected up front.
	tooLong := strings.Repeat("x", 251)
	_, _, err = profileService.Update(user.ID, services.ProfileUpdate{Bio: &tooLong})
	assert.True(t, errors.Is(err, services.ErrBioTooLong))
}

func TestProfileService_UploadProfilePicture(t *testing.T) {
	mockRepo := new(MockUserRepository)
	store := newMockMediaStore()
	profileService := services.NewProfileService(mockRepo, store)

	user := &models.User{ID: "user-123", ProfilePic: "http://media.test/avatars/old", ProfilePicKey: "avatars/old"}

	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	updated, err := profileService.UploadProfilePicture(context.Background(), user.ID, "image/png", strings.NewReader("png-bytes"))
	assert.NoError(t, err)
	assert.NotEmpty(t, updated.ProfilePicKey)
	assert.Equal(t, "http://media.test/"+updated.ProfilePicKey, updated.ProfilePic)
	// The previous object is removed.
	assert.Contains(t, store.deleted, "avatars/old")
	mockRepo.AssertExpectations(t)
}

func TestProfileService_UploadProfilePicture_Disabled(t *testing.T) {
	mockRepo := new(MockUserRepository)
	profileService := services.NewProfileService(mockRepo, nil)

	_, err := profileService.UploadProfilePicture(context.Background(), "user-123", "image/png", strings.NewReader("png-bytes"))
	assert.True(t, errors.Is(err, services.ErrMediaDisabled))
}

func TestProfileService_DeleteProfilePicture(t *testing.T) {
	mockRepo := new(MockUserRepository)
	store := newMockMediaStore()
	profileService := services.NewProfileService(mockRepo, store)

	user := &models.User{ID: "user-123", ProfilePic: "http://media.test/avatars/pic", ProfilePicKey: "avatars/pic"}

	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	mockRepo.On("Update", mock.AnythingOfType("*models.User")).Return(nil).Once()

	updated, err := profileService.DeleteProfilePicture(context.Background(), user.ID)
	assert.NoError(t, err)
	assert.Empty(t, updated.ProfilePic)
	assert.Empty(t, updated.ProfilePicKey)
	assert.Contains(t, store.deleted, "avatars/pic")
	mockRepo.AssertExpectations(t)

	// Deleting again fails; there is nothing left to remove.
	mockRepo.On("GetByID", user.ID).Return(user, nil).Once()
	_, err = profileService.DeleteProfilePicture(context.Background(), user.ID)
	assert.True(t, errors.Is(err, services.ErrNoProfilePicture))
	mockRepo.AssertExpectations(t)
}

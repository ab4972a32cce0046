package handlers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/bigyanadk07/BuyMeATea/internal/models"
	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
)

// 5 MB cap on profile picture uploads.
const maxProfilePicSize = 5 << 20

// ProfileHandler handles HTTP requests for creator profiles.
type ProfileHandler struct {
	profileService *services.ProfileService
	activity       *services.ActivityService
	validate       *validator.Validate
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profileService *services.ProfileService, activity *services.ActivityService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		activity:       activity,
		validate:       validator.New(),
	}
}

// RegisterRoutes registers the profile routes with the Fiber app.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	profileRoutes := router.Group("/profile")
	profileRoutes.Get("/all", h.HandleListCreators)
	profileRoutes.Get("/creator/:username", h.HandleGetCreator)

	profileRoutes.Get("/", authRequired, h.HandleGetProfile)
	profileRoutes.Get("/profile-pic", authRequired, h.HandleGetProfilePicture)
	profileRoutes.Put("/update", authRequired, h.HandleUpdateProfile)
	profileRoutes.Put("/update-bio", authRequired, h.HandleUpdateBio)
	profileRoutes.Put("/update-social", authRequired, h.HandleUpdateSocial)
	profileRoutes.Post("/upload-profile-pic", authRequired, h.HandleUploadProfilePicture)
	profileRoutes.Delete("/delete-profile-pic", authRequired, h.HandleDeleteProfilePicture)
}

// socialPayload is the wire shape shared by both legacy social-link payloads.
type socialPayload struct {
	Instagram string `json:"instagram"`
	YouTube   string `json:"youtube"`
	Twitter   string `json:"twitter"`
	Facebook  string `json:"facebook"`
	Portfolio string `json:"portfolio"`
}

func (p *socialPayload) canonical() models.SocialLinks {
	return models.SocialLinks{
		Instagram: p.Instagram,
		YouTube:   p.YouTube,
		Twitter:   p.Twitter,
		Facebook:  p.Facebook,
		Portfolio: p.Portfolio,
	}
}

// mergePayloads adapts the two legacy payload shapes ("links" from the detail
// view, "social" from the list view) into one canonical set; "social" fields
// win when both carry a value.
func mergePayloads(links, social *socialPayload) *models.SocialLinks {
	if links == nil && social == nil {
		return nil
	}
	merged := models.SocialLinks{}
	if links != nil {
		merged = links.canonical()
	}
	if social != nil {
		s := social.canonical()
		if s.Instagram != "" {
			merged.Instagram = s.Instagram
		}
		if s.YouTube != "" {
			merged.YouTube = s.YouTube
		}
		if s.Twitter != "" {
			merged.Twitter = s.Twitter
		}
		if s.Facebook != "" {
			merged.Facebook = s.Facebook
		}
		if s.Portfolio != "" {
			merged.Portfolio = s.Portfolio
		}
	}
	return &merged
}

// HandleGetProfile returns the authenticated user's own profile.
func (h *ProfileHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := h.profileService.Get(currentUserID(c))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "User not found",
			})
		}
		log.Printf("Error fetching profile: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch profile",
		})
	}
	return c.JSON(fiber.Map{"user": user})
}

// HandleListCreators returns a public, paginated creator listing.
func (h *ProfileHandler) HandleListCreators(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)

	creators, total, err := h.profileService.ListCreators(page, limit)
	if err != nil {
		log.Printf("Error fetching all creators: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch creators",
		})
	}

	views := make([]map[string]interface{}, 0, len(creators))
	for i := range creators {
		views = append(views, creators[i].PublicView())
	}
	return c.JSON(fiber.Map{
		"creators": views,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// HandleGetCreator returns the public view of one creator page.
func (h *ProfileHandler) HandleGetCreator(c *fiber.Ctx) error {
	creator, err := h.profileService.GetCreator(c.Params("username"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Creator not found",
			})
		}
		log.Printf("Error fetching creator: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not fetch creator",
		})
	}
	return c.JSON(creator.PublicView())
}

// UpdateProfileRequest represents a combined profile edit. Links is the
// legacy detail-view shape; Social the list-view one.
type UpdateProfileRequest struct {
	Name   string         `json:"name" validate:"required,min=2,max=50"`
	Bio    *string        `json:"bio"`
	Social *socialPayload `json:"social"`
	Links  *socialPayload `json:"links"`
}

// HandleUpdateProfile applies a combined profile edit.
func (h *ProfileHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return validationErrorResponse(c, err)
	}

	userID := currentUserID(c)
	user, changed, err := h.profileService.Update(userID, services.ProfileUpdate{
		Name:   req.Name,
		Bio:    req.Bio,
		Social: mergePayloads(req.Links, req.Social),
	})
	if err != nil {
		return h.profileError(c, err)
	}

	for _, action := range changed {
		h.activity.Log(userID, action, requestContext(c), "")
	}

	return c.JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    user,
	})
}

// UpdateBioRequest represents a bio-only edit.
type UpdateBioRequest struct {
	Bio string `json:"bio"`
}

// HandleUpdateBio replaces only the bio.
func (h *ProfileHandler) HandleUpdateBio(c *fiber.Ctx) error {
	var req UpdateBioRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	userID := currentUserID(c)
	user, err := h.profileService.UpdateBio(userID, req.Bio)
	if err != nil {
		return h.profileError(c, err)
	}

	h.activity.Log(userID, models.ActionProfileUpdateBio, requestContext(c), "")

	return c.JSON(fiber.Map{
		"message": "Bio updated successfully",
		"user":    user,
	})
}

// UpdateSocialRequest accepts either legacy social-links shape.
type UpdateSocialRequest struct {
	Social *socialPayload `json:"social"`
	Links  *socialPayload `json:"links"`
}

// HandleUpdateSocial merges new social links into the stored set.
func (h *ProfileHandler) HandleUpdateSocial(c *fiber.Ctx) error {
	var req UpdateSocialRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	social := mergePayloads(req.Links, req.Social)
	if social == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Social links data is required",
		})
	}

	userID := currentUserID(c)
	user, err := h.profileService.UpdateSocial(userID, *social)
	if err != nil {
		return h.profileError(c, err)
	}

	h.activity.Log(userID, models.ActionProfileUpdateSocial, requestContext(c), "")

	return c.JSON(fiber.Map{
		"message": "Social links updated successfully",
		"user":    user,
	})
}

// HandleGetProfilePicture returns the stored picture URL plus the bio and
// social links the legacy picture widget renders alongside it.
func (h *ProfileHandler) HandleGetProfilePicture(c *fiber.Ctx) error {
	user, err := h.profileService.Get(currentUserID(c))
	if err != nil {
		return h.profileError(c, err)
	}
	if user.ProfilePic == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "No profile picture found",
		})
	}
	return c.JSON(fiber.Map{
		"success":    true,
		"profilePic": user.ProfilePic,
		"bio":        user.Bio,
		"social":     user.Social,
	})
}

// HandleUploadProfilePicture stores a multipart "profilePic" file.
func (h *ProfileHandler) HandleUploadProfilePicture(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("profilePic")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "No file uploaded",
		})
	}
	if fileHeader.Size > maxProfilePicSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Profile picture must be 5MB or smaller",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		log.Printf("Error opening uploaded file: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not read uploaded file",
		})
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	userID := currentUserID(c)
	user, err := h.profileService.UploadProfilePicture(c.Context(), userID, contentType, file)
	if err != nil {
		return h.profileError(c, err)
	}

	h.activity.Log(userID, models.ActionProfilePictureUpload, requestContext(c), fileHeader.Filename)

	return c.JSON(fiber.Map{
		"message":    "Profile picture updated successfully",
		"profilePic": user.ProfilePic,
	})
}

// HandleDeleteProfilePicture removes the stored picture.
func (h *ProfileHandler) HandleDeleteProfilePicture(c *fiber.Ctx) error {
	userID := currentUserID(c)
	_, err := h.profileService.DeleteProfilePicture(c.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNoProfilePicture) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "No profile picture to delete",
			})
		}
		return h.profileError(c, err)
	}

	h.activity.Log(userID, models.ActionProfilePictureDelete, requestContext(c), "")

	return c.JSON(fiber.Map{
		"message": "Profile picture deleted successfully",
	})
}

// profileError maps service failures shared by the profile endpoints.
func (h *ProfileHandler) profileError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrBioTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Bio cannot be more than 250 characters",
		})
	case errors.Is(err, services.ErrMediaDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Media storage is not configured",
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	default:
		log.Printf("Profile operation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Server error",
		})
	}
}

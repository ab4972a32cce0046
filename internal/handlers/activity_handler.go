package handlers

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bigyanadk07/BuyMeATea/internal/repositories"
	"github.com/bigyanadk07/BuyMeATea/internal/services"
)

// ActivityHandler handles HTTP requests for the account activity log.
type ActivityHandler struct {
	activity *services.ActivityService
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activity *services.ActivityService) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
	}
}

// RegisterRoutes registers the activity routes with the Fiber app. All of
// them require authentication.
func (h *ActivityHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	activityRoutes := router.Group("/activities", authRequired)
	activityRoutes.Get("/", h.HandleList)
	activityRoutes.Get("/export", h.HandleExport)
	activityRoutes.Delete("/clear", h.HandleClear)
}

// filterFromQuery builds an ActivityFilter from the request query. Dates
// accept RFC3339 or plain YYYY-MM-DD.
func filterFromQuery(c *fiber.Ctx) repositories.ActivityFilter {
	filter := repositories.ActivityFilter{
		UserID: currentUserID(c),
		Type:   c.Query("type"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}
	if v := c.Query("startDate"); v != "" {
		if t, ok := parseDate(v); ok {
			filter.StartDate = &t
		}
	}
	if v := c.Query("endDate"); v != "" {
		if t, ok := parseDate(v); ok {
			filter.EndDate = &t
		}
	}
	return filter
}

func parseDate(v string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// HandleList returns a paginated, filterable activity listing.
func (h *ActivityHandler) HandleList(c *fiber.Ctx) error {
	entries, pagination, err := h.activity.List(filterFromQuery(c))
	if err != nil {
		log.Printf("Error fetching activities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Server error",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"data":       entries,
		"pagination": pagination,
	})
}

// HandleExport downloads the filtered history as CSV.
func (h *ActivityHandler) HandleExport(c *fiber.Ctx) error {
	data, err := h.activity.ExportCSV(filterFromQuery(c))
	if err != nil {
		log.Printf("Error exporting activities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Server error",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="activity-history.csv"`)
	return c.Send(data)
}

// HandleClear bulk-deletes the user's activity history.
func (h *ActivityHandler) HandleClear(c *fiber.Ctx) error {
	count, err := h.activity.Clear(currentUserID(c))
	if err != nil {
		log.Printf("Error clearing activities: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Server error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Activity history cleared successfully",
		"count":   count,
	})
}

package server

import "github.com/gofiber/fiber/v2"

// GetFeatureFlags returns the configured flag names and their state for the current viewer.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	viewerID := s.optionalViewerID(c)
	return c.JSON(fiber.Map{
		"flags":     s.featureFlags.Names(),
		"evaluated": s.featureFlags.Snapshot(viewerID),
	})
}

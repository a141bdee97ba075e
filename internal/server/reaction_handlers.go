package server

import (
	"twitsnap/internal/middleware"
	"twitsnap/internal/service"
	"twitsnap/internal/validation"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) addReaction(c *fiber.Ctx, svc *service.ReactionService) error {
	id, err := middleware.RequireUser(c)
	if err != nil {
		return err
	}
	snapID, err := parseTwitIDBody(c)
	if err != nil {
		return err
	}
	if err := svc.Add(c.UserContext(), id, snapID); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{"userId": id.UserID, "twitId": snapID},
	})
}

func (s *Server) removeReaction(c *fiber.Ctx, svc *service.ReactionService) error {
	id, err := middleware.RequireUser(c)
	if err != nil {
		return err
	}
	snapID, err := parseTwitIDBody(c)
	if err != nil {
		return err
	}
	if err := svc.Remove(c.UserContext(), id, snapID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) countReactions(c *fiber.Ctx, svc *service.ReactionService) error {
	snapID, err := validation.ValidateSnapID("twitId", c.Params("twitId"))
	if err != nil {
		return err
	}
	n, err := svc.Count(c.UserContext(), snapID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": n})
}

// AddLike handles POST /likes
func (s *Server) AddLike(c *fiber.Ctx) error { return s.addReaction(c, s.likes) }

// RemoveLike handles DELETE /likes
func (s *Server) RemoveLike(c *fiber.Ctx) error { return s.removeReaction(c, s.likes) }

// CountLikes handles GET /likes/twits/:twitId
func (s *Server) CountLikes(c *fiber.Ctx) error { return s.countReactions(c, s.likes) }

// GetLikedSnaps handles GET /likes/user
func (s *Server) GetLikedSnaps(c *fiber.Ctx) error {
	id, err := middleware.RequireUser(c)
	if err != nil {
		return err
	}
	views, err := s.likes.ListByUser(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": views})
}

// AddBookmark handles POST /bookmarks
func (s *Server) AddBookmark(c *fiber.Ctx) error { return s.addReaction(c, s.bookmarks) }

// RemoveBookmark handles DELETE /bookmarks
func (s *Server) RemoveBookmark(c *fiber.Ctx) error { return s.removeReaction(c, s.bookmarks) }

// CountBookmarks handles GET /bookmarks/twits/:twitId
func (s *Server) CountBookmarks(c *fiber.Ctx) error { return s.countReactions(c, s.bookmarks) }

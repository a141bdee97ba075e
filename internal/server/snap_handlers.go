package server

import (
	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/repository"
	"twitsnap/internal/service"
	"twitsnap/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type createSnapRequest struct {
	Content string              `json:"content"`
	Type    string              `json:"type"`
	Parent  string              `json:"parent"`
	Privacy string              `json:"privacy"`
	User    *service.SnapAuthor `json:"user"`
}

type editSnapRequest struct {
	Content   *string `json:"content"`
	IsBlocked *bool   `json:"isBlocked"`
}

// CreateSnap handles POST /snaps
func (s *Server) CreateSnap(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return err
	}

	var req createSnapRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("body", "Invalid request body")
	}

	view, err := s.snaps.Create(c.UserContext(), service.CreateSnapInput{
		Caller:  id,
		Content: req.Content,
		Type:    req.Type,
		Parent:  req.Parent,
		Privacy: req.Privacy,
		User:    req.User,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": view})
}

// GetSnaps handles GET /snaps
func (s *Server) GetSnaps(c *fiber.Ctx) error {
	f, err := parseSnapFilter(c)
	if err != nil {
		return err
	}
	return s.respondFeed(c, service.FeedParams{
		Filter:     f,
		ByFollowed: queryBool(c, "byFollowed"),
		Rank:       queryBool(c, "rank"),
		Bookmarks:  queryBool(c, "bookmarks"),
	})
}

// GetHashtagSnaps handles GET /hashtags/:hashtag
func (s *Server) GetHashtagSnaps(c *fiber.Ctx) error {
	f, err := parseSnapFilter(c)
	if err != nil {
		return err
	}
	f.Hashtag = c.Params("hashtag")
	if repository.HashtagKey(f.Hashtag) == "" {
		return models.NewValidationError("hashtag", "Hashtag required!")
	}
	return s.respondFeed(c, service.FeedParams{Filter: f})
}

func (s *Server) respondFeed(c *fiber.Ctx, p service.FeedParams) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return err
	}
	views, err := s.feed.GetFeed(c.UserContext(), id, p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": views})
}

// GetSnap handles GET /snaps/:id
func (s *Server) GetSnap(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return err
	}
	snapID, err := validation.ValidateSnapID("twitId", c.Params("id"))
	if err != nil {
		return err
	}

	view, err := s.feed.GetSnap(c.UserContext(), id, snapID, repository.GetOptions{
		NoJoinParent: queryBool(c, "noJoinParent"),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": view})
}

// EditSnap handles PATCH /snaps/:id
func (s *Server) EditSnap(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return err
	}
	snapID, err := validation.ValidateSnapID("twitId", c.Params("id"))
	if err != nil {
		return err
	}

	var req editSnapRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("body", "Invalid request body")
	}

	err = s.snaps.Edit(c.UserContext(), snapID, service.EditSnapInput{
		Caller:    id,
		Content:   req.Content,
		IsBlocked: req.IsBlocked,
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteSnap handles DELETE /snaps/:id?retwit=bool
func (s *Server) DeleteSnap(c *fiber.Ctx) error {
	id, err := middleware.CurrentIdentity(c)
	if err != nil {
		return err
	}
	snapID, err := validation.ValidateSnapID("twitId", c.Params("id"))
	if err != nil {
		return err
	}

	err = s.snaps.Delete(c.UserContext(), snapID, service.DeleteOptions{
		Caller:   id,
		AsRetwit: queryBool(c, "retwit"),
	})
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CountSnaps handles GET /snaps/amount
func (s *Server) CountSnaps(c *fiber.Ctx) error {
	f, err := parseSearchFilter(c)
	if err != nil {
		return err
	}
	n, err := s.feed.Count(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": n})
}

// GetTrending handles GET /snaps/trending
func (s *Server) GetTrending(c *fiber.Ctx) error {
	topics, err := s.feed.Trending(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": topics})
}

// ShareSnap handles GET /share/:twitId by redirecting into the mobile app.
func (s *Server) ShareSnap(c *fiber.Ctx) error {
	snapID, err := validation.ValidateSnapID("twitId", c.Params("twitId"))
	if err != nil {
		return err
	}
	return c.Redirect(s.config.ShareRedirectURL+"/"+snapID, fiber.StatusFound)
}

package server

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"twitsnap/internal/middleware"
	"twitsnap/internal/models"
	"twitsnap/internal/repository"
	"twitsnap/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Pagination holds parsed limit/offset query parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// parsePagination extracts limit and offset. Non-numeric or negative values
// are rejected; a zero limit keeps defaultLimit and any other limit is used as given.
func parsePagination(c *fiber.Ctx, defaultLimit int) (Pagination, error) {
	p := Pagination{Limit: defaultLimit}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, models.NewValidationError("limit", "Invalid limit")
		}
		if n > 0 {
			p.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, models.NewValidationError("offset", "Invalid offset")
		}
		p.Offset = n
	}
	return p, nil
}

func queryBool(c *fiber.Ctx, key string) bool {
	return c.Query(key) == "true"
}

// parseKinds accepts a JSON array (["original","retwit"]) or a comma separated list.
func parseKinds(raw string) ([]models.SnapKind, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var names []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, models.NewValidationError("type", "Invalid type filter")
		}
	} else {
		names = strings.Split(raw, ",")
	}

	kinds := make([]models.SnapKind, 0, len(names))
	for _, name := range names {
		kind, ok := models.ParseSnapKind(name)
		if !ok {
			return nil, models.NewValidationError("type",
				fmt.Sprintf("%s is not a valid type it must be 'retwit', 'comment' or 'original'", strings.TrimSpace(name)))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// parseSearchFilter reads the filters shared by the feed and the count endpoint.
func parseSearchFilter(c *fiber.Ctx) (repository.SnapFilter, error) {
	date, err := validation.ParseDateFilter(c.Query("createdAt"), queryBool(c, "older"), queryBool(c, "exactDate"))
	if err != nil {
		return repository.SnapFilter{}, err
	}
	return repository.SnapFilter{
		Has:      c.Query("has"),
		Username: c.Query("username"),
		Hashtag:  c.Query("hashtag"),
		Date:     date,
	}, nil
}

// parseSnapFilter reads every feed query parameter into a filter.
func parseSnapFilter(c *fiber.Ctx) (repository.SnapFilter, error) {
	f, err := parseSearchFilter(c)
	if err != nil {
		return f, err
	}

	page, err := parsePagination(c, repository.DefaultLimit)
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = page.Limit, page.Offset

	if f.Kinds, err = parseKinds(c.Query("type")); err != nil {
		return f, err
	}
	if parent := c.Query("parent"); parent != "" {
		if f.ParentID, err = validation.ValidateSnapID("parent", parent); err != nil {
			return f, err
		}
	}
	f.NoJoinParent = queryBool(c, "noJoinParent")
	return f, nil
}

// twitIDBody is the body of like and bookmark requests.
type twitIDBody struct {
	TwitID string `json:"twitId"`
}

func parseTwitIDBody(c *fiber.Ctx) (string, error) {
	var body twitIDBody
	if err := c.BodyParser(&body); err != nil {
		return "", models.NewValidationError("body", "Invalid request body")
	}
	return validation.ValidateSnapID("twitId", body.TwitID)
}

// AdminRequired rejects callers that are not administrators.
// Must be placed after middleware.AuthRequired.
func AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := middleware.CurrentIdentity(c)
		if err != nil {
			return err
		}
		if !id.IsAdmin() {
			return models.NewForbiddenError("Administrator access required.")
		}
		return c.Next()
	}
}

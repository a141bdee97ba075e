package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"twitsnap/internal/models"
)

const usersService = "users"

// RemoteUser is a user as reported by the users service, relative to the caller.
type RemoteUser struct {
	UserID    int64  `json:"userId"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	IsPrivate bool   `json:"isPrivate"`
	Following bool   `json:"following"`
	Followed  bool   `json:"followed"`
}

// Author returns the user as an Author carrying the caller's relationship.
func (u RemoteUser) Author() models.Author {
	return models.Author{UserID: u.UserID, Name: u.Name, Username: u.Username}.
		WithRelationship(models.Relationship{
			IsPrivate: u.IsPrivate,
			Following: u.Following,
			Followed:  u.Followed,
		})
}

// Notification is a push notification request relayed through the users service.
type Notification struct {
	Title string           `json:"title"`
	Body  string           `json:"body"`
	Data  NotificationData `json:"data"`
}

// NotificationData is the deep-link payload of a Notification.
type NotificationData struct {
	Params   map[string]string `json:"params"`
	Type     string            `json:"type"`
	SenderID int64             `json:"senderId"`
}

// FollowGraph is the client for the users service.
type FollowGraph struct {
	baseClient
}

// NewFollowGraph creates a users service client rooted at baseURL.
func NewFollowGraph(baseURL string, timeout time.Duration, signer Signer) *FollowGraph {
	return &FollowGraph{baseClient: newBaseClient(usersService, baseURL, timeout, signer)}
}

// LookupUser returns username as seen by viewer.
func (c *FollowGraph) LookupUser(ctx context.Context, viewer models.Identity, username string) (RemoteUser, error) {
	var body struct {
		Data RemoteUser `json:"data"`
	}
	path := "/users/" + url.PathEscape(username) + "?reduce=true"
	err := c.do(ctx, "lookup_user", http.MethodGet, path, &viewer, nil, &body)
	if err != nil {
		return RemoteUser{}, translate(ctx, err, models.NewNotFoundError("username", username))
	}
	if body.Data.Username == "" {
		body.Data.Username = username
	}
	return body.Data, nil
}

// FollowedIDs returns the ids of the users the viewer follows.
func (c *FollowGraph) FollowedIDs(ctx context.Context, viewer models.Identity) ([]int64, error) {
	var raw json.RawMessage
	path := "/users/" + url.PathEscape(viewer.Username) + "/followers"
	if err := c.do(ctx, "followed_ids", http.MethodGet, path, &viewer, nil, &raw); err != nil {
		return nil, translate(ctx, err, models.NewNotFoundError("username", viewer.Username))
	}

	type entry struct {
		ID     int64 `json:"id"`
		UserID int64 `json:"userId"`
	}
	var users []entry
	if err := json.Unmarshal(raw, &users); err != nil {
		var wrapped struct {
			Data []entry `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, models.NewServiceUnavailableError(err)
		}
		users = wrapped.Data
	}

	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if u.ID != 0 {
			ids = append(ids, u.ID)
		} else if u.UserID != 0 {
			ids = append(ids, u.UserID)
		}
	}
	return ids, nil
}

// CheckBlocked fails with a BlockedError when the caller's account is blocked.
func (c *FollowGraph) CheckBlocked(ctx context.Context, id models.Identity) error {
	if id.IsAdmin() {
		return nil
	}
	path := "/users/" + url.PathEscape(id.Username)
	if err := c.do(ctx, "check_blocked", http.MethodGet, path, &id, nil, nil); err != nil {
		return translate(ctx, err, models.NewNotFoundError("username", id.Username))
	}
	return nil
}

// Notify asks the users service to push n to the sender's followers.
func (c *FollowGraph) Notify(ctx context.Context, as models.Identity, n Notification) error {
	if err := c.do(ctx, "notify", http.MethodPost, "/users/notifications", &as, n, nil); err != nil {
		return translate(ctx, err, nil)
	}
	return nil
}

package clients

import (
	"context"
	"net/http"
	"time"

	"twitsnap/internal/models"
)

const rankingService = "feed"

// RankItem is the (id, content) pair the ranking service indexes.
type RankItem struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type rankRequest struct {
	Data  []RankItem `json:"data"`
	Limit int        `json:"limit"`
}

// Ranking is the client for the feed ranking service.
type Ranking struct {
	baseClient
}

// NewRanking creates a ranking service client rooted at baseURL.
func NewRanking(baseURL string, timeout time.Duration) *Ranking {
	return &Ranking{baseClient: newBaseClient(rankingService, baseURL, timeout, nil)}
}

// RankItems projects snaps onto the payload the ranking service accepts.
func RankItems(snaps []models.Snap) []RankItem {
	items := make([]RankItem, 0, len(snaps))
	for _, s := range snaps {
		items = append(items, RankItem{ID: s.ID, Content: s.Content})
	}
	return items
}

// Rank returns up to limit snap ids recommended for a user whose activity is sample.
// Only the ids of the response are used.
func (c *Ranking) Rank(ctx context.Context, sample []models.Snap, limit int) ([]string, error) {
	var body struct {
		Ranking struct {
			Data []RankItem `json:"data"`
		} `json:"ranking"`
	}
	req := rankRequest{Data: RankItems(sample), Limit: limit}
	if err := c.do(ctx, "rank", http.MethodPost, "/rank", nil, req, &body); err != nil {
		return nil, translate(ctx, err, nil)
	}

	ids := make([]string, 0, len(body.Ranking.Data))
	for _, item := range body.Ranking.Data {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}
	return ids, nil
}

// Trending returns the current trending topics.
func (c *Ranking) Trending(ctx context.Context, limit int) ([]models.TrendingTopic, error) {
	var body struct {
		Trends struct {
			Data []models.TrendingTopic `json:"data"`
		} `json:"trends"`
	}
	if err := c.do(ctx, "trending", http.MethodPost, "/trending", nil, map[string]int{"limit": limit}, &body); err != nil {
		return nil, translate(ctx, err, nil)
	}
	if body.Trends.Data == nil {
		return []models.TrendingTopic{}, nil
	}
	return body.Trends.Data, nil
}

// Sync replaces the ranking service's index with snaps.
func (c *Ranking) Sync(ctx context.Context, snaps []models.Snap) error {
	req := rankRequest{Data: RankItems(snaps), Limit: len(snaps)}
	if err := c.do(ctx, "sync", http.MethodPost, "/", nil, req, nil); err != nil {
		return translate(ctx, err, nil)
	}
	return nil
}

package models

import "time"

// Hashtag is a hashtag entity as returned to clients.
type Hashtag struct {
	Text string `json:"text"`
}

// UserMention is a mention entity as returned to clients.
type UserMention struct {
	Username string `json:"username"`
}

// Entities groups the entities extracted from a snap's content.
type Entities struct {
	Hashtags     []Hashtag     `json:"hashtags"`
	UserMentions []UserMention `json:"userMentions"`
}

// Interactions is the per-viewer interaction state of a snap. LikesCount is nil
// when the author's privacy hides it from the viewer.
type Interactions struct {
	LikesCount     *int `json:"likesCount,omitempty"`
	UserLiked      bool `json:"userLiked"`
	BookmarkCount  int  `json:"bookmarkCount"`
	UserBookmarked bool `json:"userBookmarked"`
	CommentCount   int  `json:"commentCount"`
	RetwitCount    int  `json:"retwitCount"`
	UserRetwitted  bool `json:"userRetwitted"`
}

// SnapView is the response representation of a snap.
type SnapView struct {
	ID        string    `json:"id"`
	User      Author    `json:"user"`
	Content   string    `json:"content"`
	Type      SnapKind  `json:"type"`
	Parent    *SnapView `json:"parent"`
	Privacy   Privacy   `json:"privacy"`
	Entities  Entities  `json:"entities"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
	*Interactions

	parentID string
	origin   *SnapView
}

// NewSnapView builds the view of s, including a one-level parent summary when loaded.
func NewSnapView(s *Snap) SnapView {
	v := summaryView(s)
	if s.ParentID != nil {
		v.parentID = *s.ParentID
	}
	if s.Parent != nil {
		p := summaryView(s.Parent)
		v.Parent = &p
	} else if s.Origin != nil {
		o := summaryView(s.Origin)
		v.origin = &o
	}
	return v
}

// source is the parent a retwit delegates to, whether or not it is rendered.
func (v SnapView) source() *SnapView {
	if v.Parent != nil {
		return v.Parent
	}
	return v.origin
}

func summaryView(s *Snap) SnapView {
	entities := Entities{
		Hashtags:     make([]Hashtag, 0, len(s.Hashtags)),
		UserMentions: make([]UserMention, 0, len(s.Mentions)),
	}
	for _, tag := range s.Hashtags {
		entities.Hashtags = append(entities.Hashtags, Hashtag{Text: tag})
	}
	for _, username := range s.Mentions {
		entities.UserMentions = append(entities.UserMentions, UserMention{Username: username})
	}

	return SnapView{
		ID:        s.ID,
		User:      s.Author(),
		Content:   s.Content,
		Type:      s.Kind,
		Privacy:   s.Privacy,
		Entities:  entities,
		IsBlocked: s.IsBlocked,
		CreatedAt: s.CreatedAt,
	}
}

// CountableID is the id interaction counts are keyed on.
func (v SnapView) CountableID() string {
	if v.Type != KindRetwit {
		return v.ID
	}
	if src := v.source(); src != nil {
		return src.ID
	}
	if v.parentID != "" {
		return v.parentID
	}
	return v.ID
}

// CountableAuthor is the author whose privacy gates the like count.
func (v SnapView) CountableAuthor() Author {
	if src := v.source(); v.Type == KindRetwit && src != nil {
		return src.User
	}
	return v.User
}

// Hidden reports whether the snap, or for a retwit its parent, is blocked.
func (v SnapView) Hidden() bool {
	if v.Type == KindRetwit {
		src := v.source()
		return src != nil && src.IsBlocked
	}
	return v.IsBlocked
}

// WithAuthors returns a copy with the author, and the parent's author, replaced via resolve.
func (v SnapView) WithAuthors(resolve func(Author) Author) SnapView {
	v.User = resolve(v.User)
	if v.Parent != nil {
		p := *v.Parent
		p.User = resolve(p.User)
		v.Parent = &p
	}
	if v.origin != nil {
		o := *v.origin
		o.User = resolve(o.User)
		v.origin = &o
	}
	return v
}

// WithInteractions returns a copy carrying in.
func (v SnapView) WithInteractions(in Interactions) SnapView {
	v.Interactions = &in
	return v
}

package models

// Relationship is the follow-graph state between the viewer and an account.
type Relationship struct {
	IsPrivate bool `json:"isPrivate"`
	// Following is true when the viewer follows the account.
	Following bool `json:"following"`
	// Followed is true when the account follows the viewer.
	Followed bool `json:"followed"`
}

// Author is an immutable snapshot of a snap's author. Relationship is only
// present after the feed has resolved it against the follow graph.
type Author struct {
	UserID   int64  `json:"userId"`
	Name     string `json:"name"`
	Username string `json:"username"`
	*Relationship
}

// WithRelationship returns a copy of a carrying rel.
func (a Author) WithRelationship(rel Relationship) Author {
	r := rel
	a.Relationship = &r
	return a
}

// IsPrivate reports whether the author's account is private. Unresolved authors count as public.
func (a Author) IsPrivate() bool {
	return a.Relationship != nil && a.Relationship.IsPrivate
}

// ViewerFollows reports whether the viewer follows the author.
func (a Author) ViewerFollows() bool {
	return a.Relationship != nil && a.Following
}

// FollowsViewer reports whether the author follows the viewer.
func (a Author) FollowsViewer() bool {
	return a.Relationship != nil && a.Followed
}

// MutualFollow reports whether viewer and author follow each other.
func (a Author) MutualFollow() bool {
	return a.ViewerFollows() && a.FollowsViewer()
}

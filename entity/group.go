package entity

import (
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/text/unicode/norm"
)

type Group struct {
	GID        string   `bson:"_id" json:"gid"`
	Name       string   `bson:"name" json:"name"`
	Majors     []string `bson:"majors,omitempty" json:"majors,omitempty"`
	Admins     []string `bson:"admins" json:"admins"`
	FollowedBy []string `bson:"followedBy,omitempty" json:"followedBy,omitempty"`
	Facebook   string   `bson:"facebook,omitempty" json:"facebook,omitempty"`
	Instagram  string   `bson:"instagram,omitempty" json:"instagram,omitempty"`
	Twitter    string   `bson:"twitter,omitempty" json:"twitter,omitempty"`
	WebPage    string   `bson:"webPage,omitempty" json:"webPage,omitempty"`
	LogoURL    string   `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
}

// GroupSummary is the denormalized subset of a Group kept in the shared
// groups list document for cheap enumeration.
type GroupSummary struct {
	GID     string   `bson:"gid" json:"gid"`
	Name    string   `bson:"name" json:"name"`
	Majors  []string `bson:"majors,omitempty" json:"majors,omitempty"`
	LogoURL string   `bson:"logoUrl,omitempty" json:"logoUrl,omitempty"`
}

func (g *Group) Summary() GroupSummary {
	return GroupSummary{
		GID:     g.GID,
		Name:    g.Name,
		Majors:  slices.Clone(g.Majors),
		LogoURL: g.LogoURL,
	}
}

// GroupIndex is the shared/groups document.
type GroupIndex struct {
	ID     string                  `bson:"_id" json:"-"`
	Groups map[string]GroupSummary `bson:"groups" json:"groups"`
}

// GroupPatch deliberately has no admins field: the admins array is only
// mutated through the admin maintainer so the role flags and the shared admin
// index can never drift from it.
type GroupPatch struct {
	Name      *string  `json:"name,omitempty"`
	Majors    []string `json:"majors,omitempty"`
	Facebook  *string  `json:"facebook,omitempty"`
	Instagram *string  `json:"instagram,omitempty"`
	Twitter   *string  `json:"twitter,omitempty"`
	WebPage   *string  `json:"webPage,omitempty"`
	LogoURL   *string  `json:"logoUrl,omitempty"`
}

func (p *GroupPatch) Apply(group Group) Group {
	if p.Name != nil {
		group.Name = *p.Name
	}
	if p.Majors != nil {
		group.Majors = slices.Clone(p.Majors)
	}
	if p.Facebook != nil {
		group.Facebook = *p.Facebook
	}
	if p.Instagram != nil {
		group.Instagram = *p.Instagram
	}
	if p.Twitter != nil {
		group.Twitter = *p.Twitter
	}
	if p.WebPage != nil {
		group.WebPage = *p.WebPage
	}
	if p.LogoURL != nil {
		group.LogoURL = *p.LogoURL
	}

	return group
}

// NormalizeGID canonicalizes an admin-chosen group id: NFC so visually equal
// ids collide, uppercase so lookups are case-insensitive.
func NormalizeGID(gid string) string {
	return strings.ToUpper(norm.NFC.String(strings.TrimSpace(gid)))
}

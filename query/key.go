package query

import (
	"fmt"

	"github.com/eringen/fieldjournal/model"
)

// Kind names the collection or entity a cache key refers to.
type Kind int

const (
	KindAllPosts Kind = iota
	KindPostByID
	KindPostsByCategory
	KindAllPortfolio
	KindPortfolioByID
	KindCallerProfile
	KindCallerRole
	KindUserProfile
	KindStats
)

var kindNames = [...]string{
	KindAllPosts:        "posts-all",
	KindPostByID:        "post-by-id",
	KindPostsByCategory: "posts-by-category",
	KindAllPortfolio:    "portfolio-all",
	KindPortfolioByID:   "portfolio-by-id",
	KindCallerProfile:   "caller-profile",
	KindCallerRole:      "caller-role",
	KindUserProfile:     "user-profile",
	KindStats:           "stats",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Key identifies one cached query result. Only the discriminator that
// belongs to Kind is set, so keys compare structurally and work as map keys.
type Key struct {
	Kind      Kind
	ID        model.ID
	Category  model.Category
	Principal model.Principal
}

func AllPosts() Key                        { return Key{Kind: KindAllPosts} }
func PostByID(id model.ID) Key             { return Key{Kind: KindPostByID, ID: id} }
func PostsByCategory(c model.Category) Key { return Key{Kind: KindPostsByCategory, Category: c} }
func AllPortfolio() Key                    { return Key{Kind: KindAllPortfolio} }
func PortfolioByID(id model.ID) Key        { return Key{Kind: KindPortfolioByID, ID: id} }
func CallerProfile() Key                   { return Key{Kind: KindCallerProfile} }
func CallerRole() Key                      { return Key{Kind: KindCallerRole} }
func Stats() Key                           { return Key{Kind: KindStats} }

func UserProfileOf(p model.Principal) Key {
	return Key{Kind: KindUserProfile, Principal: p}
}

// anyCategory matches every posts-by-category key during invalidation.
var anyCategory = Key{Kind: KindPostsByCategory}

func (k Key) String() string {
	switch k.Kind {
	case KindPostByID, KindPortfolioByID:
		return k.Kind.String() + ":" + k.ID.String()
	case KindPostsByCategory:
		if k.Category == "" {
			return k.Kind.String() + ":*"
		}
		return k.Kind.String() + ":" + string(k.Category)
	case KindUserProfile:
		return k.Kind.String() + ":" + string(k.Principal)
	}
	return k.Kind.String()
}

// CallerScoped reports whether the cached value depends on who is logged
// in. Such entries are purged, not staled, when the identity changes.
// Profiles of other principals count as well, since access to them
// depends on the caller.
func (k Key) CallerScoped() bool {
	switch k.Kind {
	case KindCallerProfile, KindCallerRole, KindUserProfile:
		return true
	}
	return false
}

// matches reports whether pattern k covers key o.
func (k Key) matches(o Key) bool {
	if k == anyCategory {
		return o.Kind == KindPostsByCategory
	}
	return k == o
}

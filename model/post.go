package model

import (
	"strings"
	"time"
)

// Platform is a social network a generated post targets.
type Platform string

const (
	PlatformX         Platform = "X"
	PlatformInstagram Platform = "Instagram"
	PlatformFacebook  Platform = "Facebook"
)

// AllPlatforms lists every platform posts are generated for, in emission
// order.
var AllPlatforms = []Platform{PlatformX, PlatformInstagram, PlatformFacebook}

/*

GeneratedPost is one platform specific social post produced for a processed
article. By construction policy every post contains at least one hashtag,
one emoji glyph and one engagement question.

Hashtags: serialized into a single column separated by ",", same convention
	as tags on crawled posts.
*/

type GeneratedPost struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	RunId     string    `json:"run_id"`
	ArticleId string    `json:"article_id"`
	Platform  Platform  `json:"platform"`
	Content   string    `json:"content"`
	Hashtags  string    `json:"hashtags"`
	CreatedAt time.Time `json:"created_at"`
}

// HashtagList splits the serialized hashtag column back into a list.
func (p *GeneratedPost) HashtagList() []string {
	if p.Hashtags == "" {
		return []string{}
	}
	return strings.Split(p.Hashtags, ",")
}

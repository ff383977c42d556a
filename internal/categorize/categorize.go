// Package categorize maps application names to activity categories.
package categorize

import (
	"strings"

	"github.com/csgen/Airi/internal/domain"
)

// DefaultKeywords holds the built-in keyword sets, keyed by category.
var DefaultKeywords = map[domain.Category][]string{
	domain.CategoryWork: {
		"visual studio", "pycharm", "vscode", "intellij", "sublime", "docker",
		"terminal", "cmd", "powershell", "outlook", "slack", "teams", "word", "excel", "powerpoint",
		"deepseek", "chatgpt", "gemini", "github", "gmail", "mail", "linkedin",
	},
	domain.CategoryCreative: {
		"photoshop", "premiere", "figma", "blender", "sketch", "wikipedia", "公众号", "微信公众平台", "维基百科",
	},
	domain.CategoryEntertainment: {
		"chrome", "firefox", "safari", "edge", "spotify",
		"netflix", "youtube", "steam", "game", "kpl", "bilibili",
	},
	domain.CategorySocial: {
		"wechat", "wexin", "whatsapp", "discord", "twitter", "facebook",
	},
}

type rule struct {
	category domain.Category
	keywords []string
}

// Categorizer classifies applications by case-insensitive keyword match.
// Sets are checked in the fixed order work, creative, entertainment, social.
type Categorizer struct {
	rules []rule
}

// New builds a Categorizer from keyword sets. Categories missing from keywords
// never match; "other" is the fallback and its keywords are ignored.
func New(keywords map[domain.Category][]string) *Categorizer {
	c := &Categorizer{}
	for _, category := range domain.Categories {
		if category == domain.CategoryOther {
			continue
		}
		words := make([]string, 0, len(keywords[category]))
		for _, word := range keywords[category] {
			if trimmed := strings.ToLower(strings.TrimSpace(word)); trimmed != "" {
				words = append(words, trimmed)
			}
		}
		c.rules = append(c.rules, rule{category: category, keywords: words})
	}
	return c
}

// Default returns a Categorizer using DefaultKeywords.
func Default() *Categorizer {
	return New(DefaultKeywords)
}

// Categorize returns the first category whose keywords occur in application.
func (c *Categorizer) Categorize(application string) domain.Category {
	lower := strings.ToLower(application)
	for _, r := range c.rules {
		for _, keyword := range r.keywords {
			if strings.Contains(lower, keyword) {
				return r.category
			}
		}
	}
	return domain.CategoryOther
}

// WithOverrides returns a Categorizer using DefaultKeywords, with the keyword
// set of every category present in overrides replaced.
func WithOverrides(overrides map[domain.Category][]string) *Categorizer {
	keywords := make(map[domain.Category][]string, len(DefaultKeywords))
	for category, words := range DefaultKeywords {
		keywords[category] = words
	}
	for category, words := range overrides {
		keywords[category] = words
	}
	return New(keywords)
}

var defaultCategorizer = Default()

// Categorize classifies application with the default keyword sets.
func Categorize(application string) domain.Category {
	return defaultCategorizer.Categorize(application)
}

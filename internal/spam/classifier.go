package spam

import (
	"regexp"
	"strings"
)

// Keyword lists are a tuned starting point, not a contract. Severe
// terms flag immediately; mild terms only accumulate score.
var severeKeywords = []string{
	"onlyfans",
	"sugar daddy",
	"sugar mommy",
	"wire transfer",
	"western union",
	"bank transfer fee",
	"nude",
	"sex chat",
	"escort",
	"binary options",
	"recover your funds",
	"claim your inheritance",
}

var mildKeywords = []string{
	"telegram",
	"whatsapp",
	"crypto",
	"bitcoin",
	"forex",
	"cashapp",
	"cash app",
	"giveaway",
	"guaranteed return",
	"guaranteed profit",
	"investment opportunity",
	"passive income",
	"act fast",
	"act now",
	"limited time",
	"dm me now",
	"double your money",
	"work from home",
}

var shortenerDomains = []string{
	"bit.ly",
	"tinyurl.com",
	"t.co/",
	"goo.gl",
	"cutt.ly",
	"rebrand.ly",
	"is.gd",
	"shorturl.at",
	"linktr.ee",
}

var (
	urlPattern   = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\b[a-z0-9-]+\.(?:ly|to|gd|com|net|io|me|link|at|ee)/\S+)`)
	moneyPattern = regexp.MustCompile(`(?i)(\$\s?\d[\d,.]*|\d[\d,.]*\s?(?:usd|dollars)|\d{1,3}\s?%)`)
)

// IsSpam scores free-form message text against keyword heuristics.
// Empty or whitespace-only text never flags. Stateless.
func IsSpam(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)

	for _, kw := range severeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	score := 0

	for _, kw := range mildKeywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}

	if urlPattern.MatchString(lower) {
		score++
	}

	for _, domain := range shortenerDomains {
		if strings.Contains(lower, domain) {
			score += 2
			break
		}
	}

	if moneyPattern.MatchString(lower) {
		score++
	}

	if strings.Count(lower, "!") >= 3 {
		score++
	}

	return score >= 3
}

package events

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// DefaultKeywords is the word list verification keywords are drawn from.
var DefaultKeywords = []string{
	"anchor", "beacon", "cinder", "drake", "ember", "falcon", "glacier", "harbor",
	"ivory", "jackal", "kestrel", "lantern", "marble", "nomad", "onyx", "pepper",
	"quartz", "raven", "saffron", "thistle", "umber", "violet", "willow", "zephyr",
}

// Keyword returns the verification keyword of guildID's cycle containing at. Every
// event started in the same ISO week shares it, across categories, without any shared
// state between them.
func Keyword(words []string, guildID string, at time.Time) string {
	if len(words) == 0 {
		words = DefaultKeywords
	}
	year, week := at.UTC().ISOWeek()
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%d-W%02d", guildID, year, week)
	sum := h.Sum32()
	word := words[sum%uint32(len(words))]
	return fmt.Sprintf("%s-%02d", strings.ToUpper(word[:1])+word[1:], (sum>>16)%100)
}

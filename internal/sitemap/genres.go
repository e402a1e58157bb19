package sitemap

// The fixed genre vocabulary Google News accepts.
// Anything else is silently dropped.
var allowedGenres = map[string]bool{
	"PressRelease":  true,
	"Satire":        true,
	"Blog":          true,
	"OpEd":          true,
	"Opinion":       true,
	"UserGenerated": true,
}

// ValidGenres filters a genre list against the allowed vocabulary,
// preserving order and dropping duplicates.
func ValidGenres(genres []string) []string {
	var valid []string
	seen := make(map[string]bool, len(genres))
	for _, genre := range genres {
		if allowedGenres[genre] && !seen[genre] {
			valid = append(valid, genre)
			seen[genre] = true
		}
	}
	return valid
}

package dedup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// minWordLen is the shortest word kept as a feature
const minWordLen = 3

var stopWords = func() map[string]bool {
	words := []string{
		"the", "and", "for", "with", "that", "this", "from", "are", "was", "were", "has", "have", "had",
		"but", "not", "you", "all", "can", "its", "our", "their", "they", "will", "would", "into", "about",
		"also", "been", "more", "than", "over", "after", "his", "her", "she", "who", "what", "when", "which",
		"как", "что", "это", "для", "или", "при", "его", "она", "они", "так", "уже", "был", "была", "были",
		"від", "для", "які", "яка", "був", "про", "але",
		"jest", "nie", "się", "oraz", "dla", "jak", "ale",
	}
	res := make(map[string]bool, len(words))
	for _, w := range words {
		res[w] = true
	}
	return res
}()

// Words splits text into lower-cased letter-only words of at least three runes, stop-words removed.
// Compatibility forms are folded first, so full-width letters and ligatures match their plain spelling.
func Words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(norm.NFKC.String(text)), func(r rune) bool { return !unicode.IsLetter(r) })
	res := make([]string, 0, len(fields))
	for _, w := range fields {
		if utf8.RuneCountInString(w) < minWordLen || stopWords[w] {
			continue
		}
		res = append(res, w)
	}
	return res
}

// Features returns the distinct words and adjacent-word bigrams of the text.
// Text with no usable words yields its normalised form as the single feature.
func Features(text string) []string {
	words := Words(text)
	if len(words) == 0 {
		norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
		if norm == "" {
			return nil
		}
		return []string{norm}
	}
	seen := make(map[string]bool, len(words)*2)
	res := make([]string, 0, len(words)*2)
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			res = append(res, f)
		}
	}
	for i, w := range words {
		add(w)
		if i > 0 {
			add(words[i-1] + " " + w)
		}
	}
	return res
}

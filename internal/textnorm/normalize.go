// Package textnorm turns card rules text and type lines into stemmed terms.
package textnorm

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"
)

var (
	reminderRe = regexp.MustCompile(`\([^)]*\)`)
	splitRe    = regexp.MustCompile(`\s+|[,:;.]\s*`)
	alphaRe    = regexp.MustCompile(`[a-zA-Z]`)
)

// Tokenize lowercases text, drops parenthesised reminder text and splits on
// whitespace and , : ; . separators. Tokens with no ASCII letter are dropped.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(norm.NFKC.String(text))
	text = reminderRe.ReplaceAllString(text, " ")

	parts := splitRe.Split(text, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if alphaRe.MatchString(p) {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Stem reduces a token to its English Snowball stem. Stop words are stemmed
// too so the stop list sees the same forms the vectorizer does.
func Stem(token string) string {
	return english.Stem(token, true)
}

// TokenizeAndStem is Tokenize followed by Stem on every token.
func TokenizeAndStem(text string) []string {
	tokens := Tokenize(text)
	for i, t := range tokens {
		tokens[i] = Stem(t)
	}
	return tokens
}

// Terms returns the n-grams of sizes minN..maxN over the stemmed tokens of
// text, after stop words are removed. N-grams are space-joined.
func Terms(text string, minN, maxN int) []string {
	stems := TokenizeAndStem(text)
	kept := stems[:0]
	for _, s := range stems {
		if !IsStopword(s) {
			kept = append(kept, s)
		}
	}
	if minN < 1 {
		minN = 1
	}

	var terms []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(kept); i++ {
			if n == 1 {
				terms = append(terms, kept[i])
				continue
			}
			terms = append(terms, strings.Join(kept[i:i+n], " "))
		}
	}
	return terms
}

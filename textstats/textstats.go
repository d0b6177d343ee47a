/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package textstats computes word statistics of a text: word count, average word length,
// longest words and word frequencies.
package textstats

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/maps"
)

// Result contains statistics of the analyzed text.
type Result struct {
	WordCount int `json:"word_count" yaml:"word_count"`
	// AverageWordLength is the mean word length in runes, rounded half-up to 2 decimals.
	AverageWordLength float64 `json:"average_word_length" yaml:"average_word_length"`
	// LongestWords are unique lower-cased words of the maximal length in ascending order.
	LongestWords []string `json:"longest_words" yaml:"longest_words"`
	// WordFrequency maps lower-cased words to the number of their occurrences.
	WordFrequency map[string]int `json:"word_frequency" yaml:"word_frequency"`
}

// Tokenize splits text into words. A word is a maximal run of Unicode letters, digits and underscores.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Analyze computes statistics of the text. Empty text or text without words gives a zero Result
// with non-nil LongestWords and WordFrequency.
func Analyze(text string) Result {
	res := Result{LongestWords: []string{}, WordFrequency: map[string]int{}}

	words := Tokenize(text)
	if len(words) == 0 {
		return res
	}

	totalLen, maxLen := 0, 0
	longest := map[string]struct{}{}
	for _, word := range words {
		lowerWord := strings.ToLower(word)
		res.WordFrequency[lowerWord]++

		wordLen := utf8.RuneCountInString(word)
		totalLen += wordLen
		switch {
		case wordLen > maxLen:
			maxLen = wordLen
			longest = map[string]struct{}{lowerWord: {}}
		case wordLen == maxLen:
			longest[lowerWord] = struct{}{}
		}
	}

	res.WordCount = len(words)
	res.AverageWordLength = roundedAverage(totalLen, res.WordCount)
	res.LongestWords = maps.Keys(longest)
	slices.Sort(res.LongestWords)
	return res
}

// roundedAverage returns total/count rounded half-up to 2 decimals.
// Integer arithmetic keeps ties like 2.125 exact.
func roundedAverage(total, count int) float64 {
	hundredths := (200*total + count) / (2 * count)
	return float64(hundredths) / 100
}

/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package textstats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Result
	}{
		{
			name: "sample sentence",
			text: "The quick brown fox jumps over the lazy dog the fox",
			want: Result{
				WordCount:         11,
				AverageWordLength: 3.73,
				LongestWords:      []string{"brown", "jumps", "quick"},
				WordFrequency: map[string]int{
					"the": 3, "quick": 1, "brown": 1, "fox": 2, "jumps": 1, "over": 1, "lazy": 1, "dog": 1,
				},
			},
		},
		{
			name: "empty text",
			text: "",
			want: Result{LongestWords: []string{}, WordFrequency: map[string]int{}},
		},
		{
			name: "only punctuation",
			text: "... !!! --",
			want: Result{LongestWords: []string{}, WordFrequency: map[string]int{}},
		},
		{
			name: "punctuation between words",
			text: "Hello, world! Test...",
			want: Result{
				WordCount:         3,
				AverageWordLength: 4.67,
				LongestWords:      []string{"hello", "world"},
				WordFrequency:     map[string]int{"hello": 1, "world": 1, "test": 1},
			},
		},
		{
			name: "single word",
			text: "Hello",
			want: Result{
				WordCount:         1,
				AverageWordLength: 5,
				LongestWords:      []string{"hello"},
				WordFrequency:     map[string]int{"hello": 1},
			},
		},
		{
			name: "case-insensitive longest words",
			text: "Go GO go_1 x",
			want: Result{
				WordCount:         4,
				AverageWordLength: 2.25,
				LongestWords:      []string{"go_1"},
				WordFrequency:     map[string]int{"go": 2, "go_1": 1, "x": 1},
			},
		},
		{
			name: "half is rounded up",
			text: "abcd ab ab ab ab ab ab abc",
			want: Result{
				WordCount:         8,
				AverageWordLength: 2.38,
				LongestWords:      []string{"abcd"},
				WordFrequency:     map[string]int{"abcd": 1, "ab": 6, "abc": 1},
			},
		},
		{
			name: "unicode letters are counted as runes",
			text: "Größe über straße",
			want: Result{
				WordCount:         3,
				AverageWordLength: 5,
				LongestWords:      []string{"straße"},
				WordFrequency:     map[string]int{"größe": 1, "über": 1, "straße": 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Analyze(tt.text))
		})
	}
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"rate", "limit_v2", "42", "x"}, Tokenize("rate-limit_v2: 42 (x)"))
	require.Empty(t, Tokenize("  \t\n"))
}

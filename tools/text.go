// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	ak "github.com/agentplayground/agentkit/agentkit"
)

var (
	wordPattern     = regexp.MustCompile(`\b\w+\b`)
	keywordPattern  = regexp.MustCompile(`\b\w{4,}\b`)
	sentencePattern = regexp.MustCompile(`[.!?]+`)
)

var stopWords = toSet(
	"that", "this", "with", "have", "will", "from", "they", "been", "were", "said",
	"each", "which", "their", "time", "would", "there", "could", "other", "more",
	"very", "what", "know", "just", "first", "into", "over", "think", "also", "your",
	"work", "life", "only", "still", "should", "after", "being", "made", "before",
	"about", "when", "than", "them", "then", "these", "some",
)

var (
	positiveWords = toSet("good", "great", "excellent", "amazing", "wonderful", "fantastic",
		"love", "like", "happy", "pleased", "awesome", "best", "brilliant", "enjoy", "nice", "perfect")
	negativeWords = toSet("bad", "terrible", "awful", "horrible", "hate", "dislike", "sad",
		"angry", "worst", "poor", "disappointed", "annoying", "broken", "useless", "ugly", "fail")
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func wordCountTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("word_count").
		Describe("Count the whitespace-separated words in a text.").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true, Description: "Text to count"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			return len(strings.Fields(args.String("text"))), nil
		}).
		Build()
}

// TextStats is the result of analyze_text.
type TextStats struct {
	Characters        int     `json:"characters"`
	Words             int     `json:"words"`
	Sentences         int     `json:"sentences"`
	Paragraphs        int     `json:"paragraphs"`
	ReadingMinutes    int     `json:"readingMinutes"`
	AvgWordLength     float64 `json:"avgWordLength"`
	AvgSentenceLength float64 `json:"avgSentenceLength"`
	UniqueWords       int     `json:"uniqueWords"`
	TopWords          []Count `json:"topWords"`
}

// Count pairs a term with its frequency.
type Count struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

func analyzeTextTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("analyze_text").
		Describe("Compute word, sentence and paragraph counts, reading time and the most common words.").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			return analyzeText(args.String("text")), nil
		}).
		Build()
}

func analyzeText(text string) TextStats {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	st := TextStats{
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
	}
	for _, s := range sentencePattern.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			st.Sentences++
		}
	}
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			st.Paragraphs++
		}
	}
	st.ReadingMinutes = max(1, st.Words/200)

	freq := make(map[string]int)
	letters := 0
	for _, w := range words {
		freq[w]++
		letters += utf8.RuneCountInString(w)
	}
	st.UniqueWords = len(freq)
	if len(words) > 0 {
		st.AvgWordLength = round1(float64(letters) / float64(len(words)))
	}
	if st.Sentences > 0 {
		st.AvgSentenceLength = round1(float64(st.Words) / float64(st.Sentences))
	}
	st.TopWords = topCounts(freq, 5)
	return st
}

func extractKeywordsTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("extract_keywords").
		Describe("List the most frequent words of four or more letters, ignoring common stop words.").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true}).
		Param(ak.Param{Name: "count", Type: ak.TypeInteger, Description: "How many keywords to return (default 10)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			n := args.Int("count", 10)
			if n <= 0 {
				return nil, fail("count must be positive")
			}
			freq := make(map[string]int)
			for _, w := range keywordPattern.FindAllString(strings.ToLower(args.String("text")), -1) {
				if !stopWords[w] {
					freq[w]++
				}
			}
			return topCounts(freq, n), nil
		}).
		Build()
}

// Sentiment is the result of analyze_sentiment.
type Sentiment struct {
	Label    string   `json:"label"`
	Score    float64  `json:"score"`
	Positive []string `json:"positive,omitempty"`
	Negative []string `json:"negative,omitempty"`
}

func analyzeSentimentTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("analyze_sentiment").
		Describe("Classify a text as positive, negative or neutral from a word list.").
		Param(ak.Param{Name: "text", Type: ak.TypeString, Required: true}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			var s Sentiment
			for _, w := range wordPattern.FindAllString(strings.ToLower(args.String("text")), -1) {
				switch {
				case positiveWords[w]:
					s.Positive = append(s.Positive, w)
				case negativeWords[w]:
					s.Negative = append(s.Negative, w)
				}
			}
			hits := len(s.Positive) + len(s.Negative)
			if hits > 0 {
				s.Score = round1(float64(len(s.Positive)-len(s.Negative)) / float64(hits))
			}
			switch {
			case s.Score > 0.2:
				s.Label = "positive"
			case s.Score < -0.2:
				s.Label = "negative"
			default:
				s.Label = "neutral"
			}
			return s, nil
		}).
		Build()
}

// topCounts returns the n most frequent terms, ties broken alphabetically.
func topCounts(freq map[string]int, n int) []Count {
	out := make([]Count, 0, len(freq))
	for term, c := range freq {
		out = append(out, Count{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

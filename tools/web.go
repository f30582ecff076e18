// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	ak "github.com/agentplayground/agentkit/agentkit"
)

// The web tools return canned data: the catalogue never reaches the network.

// Weather is a mock weather report.
type Weather struct {
	Location    string `json:"location"`
	TempC       int    `json:"tempC"`
	TempF       int    `json:"tempF"`
	Condition   string `json:"condition"`
	HumidityPct int    `json:"humidityPct"`
	WindKph     int    `json:"windKph"`
	Note        string `json:"note"`
}

var conditions = []string{"Sunny", "Partly Cloudy", "Cloudy", "Light Rain", "Windy", "Clear"}

func weatherTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("get_weather").
		Describe("Get the current weather for a location (demo data).").
		Param(ak.Param{Name: "location", Type: ak.TypeString, Required: true, Description: "City name"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			loc := strings.TrimSpace(args.String("location"))
			if loc == "" {
				return nil, fail("location is empty")
			}
			// Seed from the name so a location always reports the same weather.
			h := fnv.New32a()
			h.Write([]byte(strings.ToLower(loc)))
			seed := h.Sum32()
			c := int(seed%30) - 2
			return Weather{
				Location:    loc,
				TempC:       c,
				TempF:       c*9/5 + 32,
				Condition:   conditions[seed%uint32(len(conditions))],
				HumidityPct: 35 + int(seed%50),
				WindKph:     int(seed % 40),
				Note:        "demo data",
			}, nil
		}).
		Build()
}

// SearchResult is one mock web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func webSearchTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("web_search").
		Describe("Search the web (demo results).").
		Param(ak.Param{Name: "query", Type: ak.TypeString, Required: true}).
		Param(ak.Param{Name: "max_results", Type: ak.TypeInteger, Description: "Number of results, 1 to 5 (default 3)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			q := strings.TrimSpace(args.String("query"))
			if q == "" {
				return nil, fail("query is empty")
			}
			n := min(max(args.Int("max_results", 3), 1), 5)
			slug := strings.ReplaceAll(strings.ToLower(q), " ", "-")
			sites := []string{"example.com", "docs.example.org", "news.example.net", "wiki.example.com", "blog.example.io"}
			results := make([]SearchResult, n)
			for i := range results {
				results[i] = SearchResult{
					Title:   fmt.Sprintf("%s: result %d", q, i+1),
					URL:     fmt.Sprintf("https://%s/%s", sites[i], slug),
					Snippet: fmt.Sprintf("Background and recent coverage of %s.", q),
				}
			}
			return map[string]any{"query": q, "results": results, "note": "demo data"}, nil
		}).
		Build()
}

func (l *Library) currentTimeTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("current_time").
		Describe("Get the current date and time, optionally in an IANA time zone.").
		Param(ak.Param{Name: "timezone", Type: ak.TypeString, Description: "IANA zone such as Europe/Paris (default UTC)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			name := args.String("timezone")
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return nil, fail("unknown time zone %q", name)
			}
			now := l.now().In(loc)
			return map[string]any{
				"timezone": name,
				"time":     now.Format(time.RFC3339),
				"weekday":  now.Weekday().String(),
			}, nil
		}).
		Build()
}

// Epitrack - Incremental Epidemiological and Search-Interest Statistics Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/epitrack

package sync

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

const (
	weekListID     = "id_week"
	narrativeClass = "bulletin__text"
)

// rateRe extracts the incidence figure ("составила 45,6 на 10 тыс.").
// \x{00A0} covers the non-breaking spaces the site emits between tokens.
var rateRe = regexp.MustCompile(`(?s)состав.*?(\d+[,.]?\d*)\b[\s\x{00A0}]на[\s\x{00A0}]10`)

// narrativeRe returns the matcher for the bulletin sentence of (year, week).
// Week numbers may be zero padded on the page.
func narrativeRe(year, week int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(
		`(?s)На.*\b0*%d\b.*%d.*уровень заболеваемости населения ОРВИ и гриппом.*состав`,
		week, year))
}

// parseWeekList returns the published week numbers from the week selector.
// Non-numeric tokens are ignored. The result is sorted and unique.
func parseWeekList(r io.Reader) ([]int, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse week list: %v", ErrParseMiss, err)
	}

	node := findByID(doc, weekListID)
	if node == nil {
		return nil, fmt.Errorf("%w: element #%s not found", ErrParseMiss, weekListID)
	}

	seen := make(map[int]struct{})
	weeks := make([]int, 0, 53)
	for _, token := range strings.Fields(collectText(node)) {
		week, err := strconv.Atoi(token)
		if err != nil || week < 1 || week > 53 {
			continue
		}
		if _, dup := seen[week]; dup {
			continue
		}
		seen[week] = struct{}{}
		weeks = append(weeks, week)
	}
	sort.Ints(weeks)
	return weeks, nil
}

// parseWeekRate finds the narrative paragraph for (year, week) and extracts
// the incidence rate per 10,000. When several paragraphs match the last one
// wins. A page without a match yields ErrParseMiss.
func parseWeekRate(r io.Reader, year, week int) (float64, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return 0, fmt.Errorf("%w: parse page: %v", ErrParseMiss, err)
	}

	sentence := narrativeRe(year, week)
	var match string
	for _, n := range findByClass(doc, narrativeClass) {
		text := collectText(n)
		if sentence.MatchString(text) {
			match = text
		}
	}
	if match == "" {
		return 0, fmt.Errorf("%w: year %d week %d", ErrParseMiss, year, week)
	}

	groups := rateRe.FindStringSubmatch(match)
	if groups == nil {
		return 0, fmt.Errorf("%w: no rate in sentence for year %d week %d", ErrParseMiss, year, week)
	}
	value, err := strconv.ParseFloat(strings.Replace(groups[1], ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: rate %q: %v", ErrParseMiss, groups[1], err)
	}
	return value, nil
}

func findByID(root *html.Node, id string) *html.Node {
	if root.Type == html.ElementNode && attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func findByClass(root *html.Node, class string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, class) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// collectText concatenates all descendant text nodes.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Package faq loads the clinic knowledge base and answers patient
// questions by keyword search over its Q&A sections.
package faq

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/acme-dental/booking-agent/pkg/logging"
)

// fallbackAnswer is returned when no section matches the query.
const fallbackAnswer = "I couldn't find a specific FAQ entry for that question. " +
	"Here's a summary: Acme Dental offers 30-minute dental check-ups " +
	"for €60 (€50 for students and seniors 65+). We have one dentist, " +
	"accept no walk-ins, and appointments must be booked in advance. " +
	"You can ask me about services, pricing, cancellation policies, " +
	"what to bring, or how to book."

// headingPattern matches the "### question" headings of the knowledge
// base markdown.
var headingPattern = regexp.MustCompile(`(?m)^###\s+(.+)$`)

// Section is one Q&A entry of the knowledge base.
type Section struct {
	Heading string
	Body    string
}

// KnowledgeBase holds the parsed FAQ. Immutable after construction,
// safe for concurrent use.
type KnowledgeBase struct {
	full     string
	sections []Section
	logger   zerolog.Logger
}

// Load reads and parses the knowledge base file. A missing file yields
// a usable empty knowledge base; the error is logged, not returned,
// because the agent degrades gracefully without FAQ content.
func Load(path string) *KnowledgeBase {
	logger := logging.NewLogger("faq")

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Knowledge base not found")
		return &KnowledgeBase{logger: logger}
	}
	return Parse(string(data))
}

// Parse builds a knowledge base from markdown content.
func Parse(content string) *KnowledgeBase {
	return &KnowledgeBase{
		full:     content,
		sections: splitSections(content),
		logger:   logging.NewLogger("faq"),
	}
}

// splitSections splits the markdown into "### heading" Q&A sections.
func splitSections(content string) []Section {
	matches := headingPattern.FindAllStringSubmatchIndex(content, -1)
	sections := make([]Section, 0, len(matches))
	for i, m := range matches {
		heading := strings.TrimSpace(content[m[2]:m[3]])
		bodyStart := m[1]
		bodyEnd := len(content)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := strings.TrimSpace(content[bodyStart:bodyEnd])
		body = strings.TrimSpace(strings.TrimSuffix(body, "---"))
		sections = append(sections, Section{Heading: heading, Body: body})
	}
	return sections
}

// Full returns the complete FAQ content for system prompt injection.
func (kb *KnowledgeBase) Full() string {
	return kb.full
}

// Sections returns the parsed Q&A sections.
func (kb *KnowledgeBase) Sections() []Section {
	return kb.sections
}

// Search returns the most relevant FAQ sections for query as a
// human-readable answer. Sections are scored by keyword overlap, with
// a bonus for query words appearing in the heading; the top three are
// returned. With no match a generic clinic summary is returned.
func (kb *KnowledgeBase) Search(query string) string {
	if len(kb.sections) == 0 {
		return "The FAQ knowledge base is currently unavailable. Please provide general guidance."
	}

	words := strings.Fields(strings.ToLower(query))

	type scored struct {
		score   int
		section Section
	}
	var results []scored
	for _, section := range kb.sections {
		text := strings.ToLower(section.Heading + " " + section.Body)
		heading := strings.ToLower(section.Heading)

		score := 0
		headingBonus := false
		for _, w := range words {
			if len(w) > 2 && strings.Contains(text, w) {
				score++
			}
			if len(w) > 3 && strings.Contains(heading, w) {
				headingBonus = true
			}
		}
		if headingBonus {
			score += 2
		}
		if score > 0 {
			results = append(results, scored{score: score, section: section})
		}
	}

	if len(results) == 0 {
		return fallbackAnswer
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > 3 {
		results = results[:3]
	}

	var b strings.Builder
	b.WriteString("Here's what I found in our FAQ:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n**%s**\n%s\n", r.section.Heading, r.section.Body)
	}
	return b.String()
}

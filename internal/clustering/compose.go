package clustering

import (
	"strings"

	"Vid2News/internal/domain"
)

// ComposeText renders the embedding input for an item.
func ComposeText(item domain.NewsItem) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(item.Title)
	b.WriteString("\nSummary: ")
	b.WriteString(item.Summary)
	b.WriteString("\nContent: ")
	b.WriteString(item.Content)
	b.WriteString("\nKeywords: ")
	b.WriteString(strings.Join(item.Keywords, ", "))
	b.WriteString("\nCategory: ")
	b.WriteString(item.Category)
	return b.String()
}

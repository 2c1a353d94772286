package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// TextProcessor provides utilities for processing reply text
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	return &TextProcessor{
		logger: logger,
	}
}

// TruncateText safely truncates text to the specified maximum size
// and ensures the result is valid UTF-8
func (tp *TextProcessor) TruncateText(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", maxSize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// SanitizeUTF8 drops invalid UTF-8 sequences
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	sanitized := strings.ToValidUTF8(text, "")

	tp.logger.Debug("Text sanitized",
		zap.Int("original_size", len(text)),
		zap.Int("sanitized_size", len(sanitized)))

	return sanitized
}

// ProcessText strips quoted correspondence, then truncates and sanitizes
func (tp *TextProcessor) ProcessText(text string, maxSize int) string {
	return tp.SanitizeUTF8(tp.TruncateText(StripQuoted(text), maxSize))
}

// HTMLToText renders an HTML body as plain text, one block element per line
func (tp *TextProcessor) HTMLToText(html string) string {
	text, err := HTMLToText(html)
	if err != nil {
		tp.logger.Debug("Failed to parse HTML body, using raw text", zap.Error(err))
		return html
	}
	return text
}

var blockSelectors = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, blockquote"

// HTMLToText converts an HTML fragment to plain text. Quoted blocks keep a "> "
// prefix so quote stripping still recognises them.
func HTMLToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, head").Remove()
	doc.Find("blockquote").Each(func(_ int, s *goquery.Selection) {
		lines := strings.Split(strings.TrimSpace(s.Text()), "\n")
		for i, l := range lines {
			lines[i] = "> " + strings.TrimSpace(l)
		}
		s.ReplaceWithHtml("<div>" + escapeText(strings.Join(lines, "\n")) + "</div>")
	})
	doc.Find(blockSelectors).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var out []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" || (len(out) > 0 && out[len(out)-1] != "") {
			out = append(out, line)
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n")), nil
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\n", "<br>")
	return r.Replace(s)
}

var quoteHeaders = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^on .{1,200}wrote:\s*$`),
	regexp.MustCompile(`(?i)^-{2,}\s*original message\s*-{2,}$`),
	regexp.MustCompile(`(?i)^from:\s.*@`),
	regexp.MustCompile(`(?i)^sent from my \w+`),
}

// StripQuoted returns only the newly written part of a reply: everything before
// the first quote header, without ">"-prefixed lines.
func StripQuoted(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isQuoteHeader(trimmed) {
			break
		}
		if strings.HasPrefix(trimmed, ">") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isQuoteHeader(line string) bool {
	for _, re := range quoteHeaders {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// Summarize joins the first meaningful lines of a reply for display
func Summarize(text string, maxLen int) string {
	var lines, meaningful []string
	for _, l := range strings.Split(StripQuoted(text), "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
		if len(l) > 10 {
			meaningful = append(meaningful, l)
		}
	}
	if len(meaningful) == 0 {
		meaningful = lines
	}
	if len(meaningful) > 3 {
		meaningful = meaningful[:3]
	}
	summary := strings.Join(meaningful, " ")
	if maxLen > 0 && len(summary) > maxLen {
		cut := summary[:maxLen]
		for !utf8.ValidString(cut) && len(cut) > 0 {
			cut = cut[:len(cut)-1]
		}
		summary = cut + "..."
	}
	if summary == "" {
		return "[Reply content not available]"
	}
	return summary
}

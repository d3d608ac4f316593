package extract

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/lu4p/cat"
)

// openDocContentPath is the main content part of every OpenDocument package.
const openDocContentPath = "content.xml"

var (
	// odfBlock matches a text:p or text:h element including nested spans.
	odfBlock = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*)?>(.*?)</text:(?:p|h)>`)
	// odfSelfClosing matches empty paragraphs like <text:p/>.
	odfSelfClosing = regexp.MustCompile(`<text:(?:p|h)(?:\s[^>]*)?/>`)
	// odfLineBreak and odfTab are inline whitespace elements.
	odfLineBreak = regexp.MustCompile(`<text:line-break\s*/>`)
	odfTab       = regexp.MustCompile(`<text:tab\s*/>`)
	anyTag       = regexp.MustCompile(`<[^>]+>`)
)

// extractOpenDocument extracts paragraphs and headings from an OpenDocument package
// (.odp, .ods, .odt), one per line.
func extractOpenDocument(content []byte) (string, error) {
	zr, err := openZip(content, "OpenDocument")
	if err != nil {
		return "", err
	}
	contentXML, err := readZipEntry(zr, openDocContentPath)
	if err != nil {
		return "", fmt.Errorf("extract OpenDocument: %w", err)
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract OpenDocument: %s not found", openDocContentPath)
	}

	s := odfSelfClosing.ReplaceAllString(string(contentXML), "")
	var lines []string
	for _, m := range odfBlock.FindAllStringSubmatch(s, -1) {
		inner := odfLineBreak.ReplaceAllString(m[2], "\n")
		inner = odfTab.ReplaceAllString(inner, "\t")
		text := strings.TrimSpace(html.UnescapeString(anyTag.ReplaceAllString(inner, "")))
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// extractODT uses lu4p/cat and falls back to the OpenDocument reader when cat cannot
// parse the file.
func extractODT(content []byte) (string, error) {
	if text, err := cat.FromBytes(content); err == nil && strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}
	return extractOpenDocument(content)
}

// extractRTF converts RTF to plain text with lu4p/cat.
func extractRTF(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract RTF: %w", err)
	}
	return strings.TrimSpace(text), nil
}

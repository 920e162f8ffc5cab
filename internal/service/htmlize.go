// internal/service/htmlize.go
package service

import (
	"strings"

	"github.com/harborpress/outreach-engine/internal/model"
)

// HTMLizeBody converts a plain-text body to HTML. Blank lines split
// paragraphs, each wrapped in <p>; single newlines inside a paragraph become
// <br>. Email clients render the result without further templating.
func HTMLizeBody(body string) string {
	normalized := strings.ReplaceAll(body, "\r\n", "\n")

	paragraphs := []string{}
	for _, p := range strings.Split(normalized, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		paragraphs = append(paragraphs, "<p>"+strings.ReplaceAll(p, "\n", "<br>")+"</p>")
	}
	return strings.Join(paragraphs, "\n")
}

// SignatureLines picks the campaign-level signature override when present,
// otherwise the sender-level default.
func SignatureLines(c *model.Campaign, defaults []string) []string {
	if c.Signature != nil && strings.TrimSpace(*c.Signature) != "" {
		sig := strings.ReplaceAll(*c.Signature, "\r\n", "\n")
		return strings.Split(sig, "\n")
	}
	return defaults
}

// AppendSignature adds a muted signature block under the rendered body, lines
// joined with line breaks.
func AppendSignature(html string, lines []string) string {
	kept := []string{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return html
	}
	block := `<p style="font-size:12px;color:#777;">` + strings.Join(kept, "<br>") + `</p>`
	if html == "" {
		return block
	}
	return html + "\n" + block
}

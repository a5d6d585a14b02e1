package publish

import (
	"fmt"
	"strings"

	"github.com/Afrawles/weekreflect/internal/narrative"
	"github.com/Afrawles/weekreflect/internal/notion"
	"github.com/Afrawles/weekreflect/internal/report"
)

// BuildTitle names the reflection after its ISO-8601 week.
func BuildTitle(r report.DateRange) string {
	year, week := r.Start.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d Reflection (%s ~ %s)", year, week,
		r.Start.Format(report.DateLayout), r.End.Format(report.DateLayout))
}

// BuildBlocks renders the reflection as Notion blocks.
func BuildBlocks(n *narrative.Result, data *report.IntegratedData, previousTry []string) []notion.Block {
	doc := buildDocument(n, data, previousTry)
	blocks := make([]notion.Block, 0, len(doc))
	for _, el := range doc {
		switch el.kind {
		case kindHeading2:
			blocks = append(blocks, notion.Heading2(el.text))
		case kindHeading3:
			blocks = append(blocks, notion.Heading3(el.text))
		case kindParagraph:
			blocks = append(blocks, notion.Paragraph(el.text))
		case kindInstruction:
			blocks = append(blocks, notion.ItalicParagraph(el.text))
		case kindBullet:
			blocks = append(blocks, notion.LinkedBullet(el.text, el.url))
		case kindDivider:
			blocks = append(blocks, notion.Divider())
		}
	}
	return blocks
}

// BuildMarkdown renders the same document as flat markdown, used for dry-run
// previews and the local fallback file.
func BuildMarkdown(n *narrative.Result, data *report.IntegratedData, previousTry []string) string {
	var sb strings.Builder
	sb.WriteString("# " + BuildTitle(data.DateRange) + "\n")

	prev := elementKind(-1)
	for _, el := range buildDocument(n, data, previousTry) {
		if el.kind != kindBullet || prev != kindBullet {
			sb.WriteString("\n")
		}
		switch el.kind {
		case kindHeading2:
			sb.WriteString("## " + el.text + "\n")
		case kindHeading3:
			sb.WriteString("### " + el.text + "\n")
		case kindParagraph:
			sb.WriteString(el.text + "\n")
		case kindInstruction:
			sb.WriteString("_" + el.text + "_\n")
		case kindBullet:
			if el.url != "" {
				sb.WriteString(fmt.Sprintf("- [%s](%s)\n", el.text, el.url))
			} else {
				sb.WriteString("- " + el.text + "\n")
			}
		case kindDivider:
			sb.WriteString("---\n")
		}
		prev = el.kind
	}
	return sb.String()
}

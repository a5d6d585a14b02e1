package notion

import "unicode/utf8"

// MaxTextLength is the Notion limit for one rich text segment.
const MaxTextLength = 2000

type BlockType string

const (
	TypeHeading1  BlockType = "heading_1"
	TypeHeading2  BlockType = "heading_2"
	TypeHeading3  BlockType = "heading_3"
	TypeParagraph BlockType = "paragraph"
	TypeBullet    BlockType = "bulleted_list_item"
	TypeQuote     BlockType = "quote"
	TypeDivider   BlockType = "divider"
)

type Annotations struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
	Code   bool `json:"code,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type RichText struct {
	Type        string       `json:"type"`
	Text        TextContent  `json:"text"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

// Block is one child block. Exactly one content field matching Type is set.
type Block struct {
	Object    string     `json:"object"`
	Type      BlockType  `json:"type"`
	Heading1  *TextBlock `json:"heading_1,omitempty"`
	Heading2  *TextBlock `json:"heading_2,omitempty"`
	Heading3  *TextBlock `json:"heading_3,omitempty"`
	Paragraph *TextBlock `json:"paragraph,omitempty"`
	Bullet    *TextBlock `json:"bulleted_list_item,omitempty"`
	Quote     *TextBlock `json:"quote,omitempty"`
	Divider   *struct{}  `json:"divider,omitempty"`
}

// Text returns the concatenated plain text of the block.
func (b Block) Text() string {
	tb := b.textBlock()
	if tb == nil {
		return ""
	}
	var s string
	for _, rt := range tb.RichText {
		s += rt.Text.Content
	}
	return s
}

func (b Block) textBlock() *TextBlock {
	switch b.Type {
	case TypeHeading1:
		return b.Heading1
	case TypeHeading2:
		return b.Heading2
	case TypeHeading3:
		return b.Heading3
	case TypeParagraph:
		return b.Paragraph
	case TypeBullet:
		return b.Bullet
	case TypeQuote:
		return b.Quote
	}
	return nil
}

func Heading1(text string) Block {
	return Block{Object: "block", Type: TypeHeading1, Heading1: &TextBlock{RichText: Text(text)}}
}

func Heading2(text string) Block {
	return Block{Object: "block", Type: TypeHeading2, Heading2: &TextBlock{RichText: Text(text)}}
}

func Heading3(text string) Block {
	return Block{Object: "block", Type: TypeHeading3, Heading3: &TextBlock{RichText: Text(text)}}
}

func Paragraph(text string) Block {
	return Block{Object: "block", Type: TypeParagraph, Paragraph: &TextBlock{RichText: Text(text)}}
}

// ItalicParagraph renders an instruction line.
func ItalicParagraph(text string) Block {
	rt := Text(text)
	for i := range rt {
		rt[i].Annotations = &Annotations{Italic: true}
	}
	return Block{Object: "block", Type: TypeParagraph, Paragraph: &TextBlock{RichText: rt}}
}

func Bullet(text string) Block {
	return Block{Object: "block", Type: TypeBullet, Bullet: &TextBlock{RichText: Text(text)}}
}

// LinkedBullet renders a bullet whose whole text links to url.
func LinkedBullet(text, url string) Block {
	b := Bullet(text)
	if url != "" {
		for i := range b.Bullet.RichText {
			b.Bullet.RichText[i].Text.Link = &Link{URL: url}
		}
	}
	return b
}

func Quote(text string) Block {
	return Block{Object: "block", Type: TypeQuote, Quote: &TextBlock{RichText: Text(text)}}
}

func Divider() Block {
	return Block{Object: "block", Type: TypeDivider, Divider: &struct{}{}}
}

// Text splits s into rich text segments of at most MaxTextLength runes.
func Text(s string) []RichText {
	if s == "" {
		return []RichText{}
	}
	var out []RichText
	for len(s) > 0 {
		cut := len(s)
		if utf8.RuneCountInString(s) > MaxTextLength {
			cut = byteOffset(s, MaxTextLength)
		}
		out = append(out, RichText{Type: "text", Text: TextContent{Content: s[:cut]}})
		s = s[cut:]
	}
	return out
}

func byteOffset(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

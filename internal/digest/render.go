package digest

import (
	"strconv"
	"strings"

	"kulisml/internal/content"
	"kulisml/internal/topics"
	"kulisml/pkg/tgui"
)

type section struct {
	topic topics.Topic
	items []content.Item
}

const (
	preamble = "📰 Daily AI news 🚀"
	closing  = "Have a great day! ⚡️"
)

// render lays the digest out as: preamble, one block per topic with numbered
// items (title line + read link), closing line. Item order is whatever the
// provider returned; nothing is re-sorted here.
func render(sections []section) string {
	var b strings.Builder
	b.WriteString(tgui.B(preamble).String())
	b.WriteString("\n\n")

	for _, sec := range sections {
		b.WriteString("🔥 ")
		b.WriteString(tgui.B(sec.topic.Display() + ":").String())
		b.WriteString("\n")
		for i, it := range sec.items {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". ")
			b.WriteString(tgui.Esc(it.Title).String())
			b.WriteString("\n🔗 ")
			b.WriteString(tgui.Link("Read", it.Link).String())
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(tgui.B(closing).String())
	return b.String()
}

package selection

import (
	"context"
	"strings"

	kit "kulisml/internal/transport"
	"kulisml/pkg/tgui"
)

// Callback data scope/actions for the selection keyboard.
const (
	CallbackScope  = "topics"
	ActionToggle   = "toggle"
	ActionDone     = "done"
	checkedPrefix  = "✅ "
	doneButtonText = "🚀 Done — send me news"
)

// uiMessage is one rendered payload: text plus send options.
type uiMessage struct {
	text string
	opt  *kit.SendOptions
}

func (m uiMessage) send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.text, m.opt)
}

func (m uiMessage) edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.text, m.opt)
}

func textMessage(text string) uiMessage {
	return uiMessage{
		text: text,
		opt:  &kit.SendOptions{ParseMode: "HTML", DisablePreview: true},
	}
}

// renderSelection builds the multi-select message: intro text plus one
// keyboard row per topic (✅-prefixed when selected) and a Done row.
func (s *Service) renderSelection(sess *session) uiMessage {
	var b strings.Builder
	b.WriteString(tgui.B("🤖 Hi! I collect fresh AI news for you.").String())
	b.WriteString("\n\n")
	b.WriteString(tgui.Esc("Pick the topics you are interested in 🎯").String())
	b.WriteString("\n")
	b.WriteString(tgui.I("Choose one or more, then hit Done:").String())

	kb := tgui.NewInline()
	for _, t := range s.catalog.List() {
		label := t.Display()
		if sess.has(t.ID) {
			label = checkedPrefix + label
		}
		kb.Row(tgui.Btn(label, tgui.Data(CallbackScope, ActionToggle, t.ID)))
	}
	kb.Row(tgui.Btn(doneButtonText, tgui.Data(CallbackScope, ActionDone, "")))

	return uiMessage{
		text: b.String(),
		opt: &kit.SendOptions{
			ParseMode:          "HTML",
			DisablePreview:     true,
			ReplyMarkupAdapter: kb.Markup(),
		},
	}
}

// renderCommitted builds the confirmation shown in place of the keyboard.
// An empty working set gets the distinct "nothing selected" text.
func (s *Service) renderCommitted(sess *session) uiMessage {
	if len(sess.working) == 0 {
		return textMessage("⚠️ You didn't pick any topics, so no digest is scheduled. Send /start to choose again 🔄")
	}

	var b strings.Builder
	b.WriteString(tgui.B("🎉 Done! Your subscriptions:").String())
	b.WriteString("\n\n")
	for _, t := range s.catalog.List() {
		if !sess.has(t.ID) {
			continue
		}
		b.WriteString("• ")
		b.WriteString(tgui.Esc(t.Display()).String())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(tgui.Esc("Daily news at "+s.cfg.FireTimeText+" 📨").String())
	return textMessage(b.String())
}

package tgui

import "testing"

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		scope   string
		action  string
		payload string
	}{
		{name: "with payload", scope: "topics", action: "toggle", payload: "nlp"},
		{name: "no payload", scope: "topics", action: "done"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			raw := Data(tt.scope, tt.action, tt.payload)
			scope, action, payload, ok := SplitData(raw)
			if !ok {
				t.Fatalf("SplitData(%q) not ok", raw)
			}
			if scope != tt.scope || action != tt.action || payload != tt.payload {
				t.Fatalf("got (%q,%q,%q), want (%q,%q,%q)", scope, action, payload, tt.scope, tt.action, tt.payload)
			}
		})
	}
}

func TestSplitDataInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "noaction", ":"} {
		if _, _, _, ok := SplitData(raw); ok {
			t.Fatalf("SplitData(%q) = ok, want not ok", raw)
		}
	}
}

func TestEscAndLink(t *testing.T) {
	t.Parallel()
	if got := Esc("<b>&").String(); got != "&lt;b&gt;&amp;" {
		t.Fatalf("Esc = %q", got)
	}
	got := Link(`a"b`, "https://example.com?x=1&y=2").String()
	want := `<a href="https://example.com?x=1&amp;y=2">a&#34;b</a>`
	if got != want {
		t.Fatalf("Link = %q, want %q", got, want)
	}
}

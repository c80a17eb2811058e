package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// PageProps configures the full page.
type PageProps struct {
	Title      string
	Count      uint64
	Stylesheet string
	ClickPath  string
	// EventsPath enables live updates over SSE when non-empty.
	EventsPath string
}

// Page renders the full HTML document.
func Page(p PageProps) templ.Component {
	head := []templ.Component{
		templ.Raw(`<meta charset="UTF-8">`),
		templ.Raw(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`),
		Title(p.Title),
		Script(HtmxScript),
	}
	if p.EventsPath != "" {
		head = append(head, Script(HtmxSSEExtScript))
	}
	head = append(head, CSS(p.Stylesheet))

	counter := Counter(p.Count)
	if p.EventsPath != "" {
		counter = Element("div", []Attr{
			{Name: HxExt, Value: "sse"},
			{Name: SSEConnect, Value: p.EventsPath},
			{Name: SSESwap, Value: CounterEvent},
		}, counter)
	}

	button := Element("button", []Attr{
		{Name: HxPost, Value: p.ClickPath},
		{Name: HxTarget, Value: "#" + CounterID},
		{Name: HxSwap, Value: SwapOuterHTML},
		{Name: "class", Value: "border-2"},
	}, Text("Click Me!"))

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<!DOCTYPE html>"); err != nil {
			return err
		}
		html := Element("html", []Attr{{Name: "lang", Value: "en"}},
			Element("head", nil, head...),
			Element("body", nil, counter, button),
		)
		return html.Render(ctx, w)
	})
}

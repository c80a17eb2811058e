// Package views renders the clicker page and its counter fragment as templ components.
package views

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// Attr is a single HTML attribute. An empty Value renders a bare attribute.
type Attr struct {
	Name  string
	Value string
}

// writeAttrs writes attributes in order, escaping values.
func writeAttrs(w io.Writer, attrs []Attr) error {
	for _, a := range attrs {
		var err error
		if a.Value == "" {
			_, err = fmt.Fprintf(w, ` %s`, a.Name)
		} else {
			_, err = fmt.Fprintf(w, ` %s="%s"`, a.Name, templ.EscapeString(a.Value))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Element renders <tag attrs...>children</tag>.
func Element(tag string, attrs []Attr, children ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<"+tag); err != nil {
			return err
		}
		if err := writeAttrs(w, attrs); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ">"); err != nil {
			return err
		}
		for _, c := range children {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	})
}

// Text renders escaped text.
func Text(s string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, templ.EscapeString(s))
		return err
	})
}

// Script returns a script tag for an external source.
func Script(src string) templ.Component {
	return Element("script", []Attr{{Name: "src", Value: src}})
}

// CSS returns a link tag for a stylesheet.
func CSS(href string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<link rel="stylesheet" href="%s">`, templ.EscapeString(href))
		return err
	})
}

// Title returns a title tag.
func Title(title string) templ.Component {
	return Element("title", nil, Text(title))
}

// Render renders a component to a string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

package views

import (
	"strconv"

	"github.com/a-h/templ"
)

// CounterID is the DOM id the increment response replaces.
const CounterID = "counter"

// CounterEvent is the SSE event name carrying a re-rendered counter.
const CounterEvent = "counter"

// Counter renders the counter fragment.
func Counter(count uint64) templ.Component {
	return Element("div",
		[]Attr{{Name: "class", Value: "text-red-500"}, {Name: "id", Value: CounterID}},
		Text("Clicked: "+strconv.FormatUint(count, 10)),
	)
}

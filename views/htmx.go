package views

// htmx attribute names used by the page.
const (
	HxGet     = "hx-get"
	HxPost    = "hx-post"
	HxTarget  = "hx-target"
	HxSwap    = "hx-swap"
	HxTrigger = "hx-trigger"
	HxExt     = "hx-ext"

	// server-sent events extension
	SSEConnect = "sse-connect"
	SSESwap    = "sse-swap"
)

// htmx swap strategies.
const (
	SwapInnerHTML = "innerHTML"
	SwapOuterHTML = "outerHTML"
)

// Pinned client assets.
const (
	HtmxScript       = "https://unpkg.com/htmx.org@2.0.4"
	HtmxSSEExtScript = "https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"
)

// Package fetch implements the document fetch collaborator.
//
// HTTPFetcher is the fast path: a plain GET with a browser user agent,
// per-host throttling and an optional robots.txt check. When a fetch asks
// for rendering, or when no fast path exists for the content, it delegates
// to a Renderer backed by headless Chrome.
//
// Every failure is returned as a *domain.FetchError so callers can classify
// network, status and timeout failures.
package fetch

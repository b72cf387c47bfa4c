// Package extractors dispatches sources to format-specific extractors and
// holds the text cleanup shared by them.
//
// Subpackages implement driven.Extractor:
//
//   - pdf: PDF documents over HTTP or from disk
//   - web: HTML pages with a JS-render fallback
//   - repository: repository READMEs via the GitHub API
package extractors

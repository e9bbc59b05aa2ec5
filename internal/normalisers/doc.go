// Package normalisers converts exported clinical documents (Word, HTML,
// plain text) into the free text stored on an episode.
//
// Each format lives in its own subpackage. NewDefault registers all of them.
package normalisers

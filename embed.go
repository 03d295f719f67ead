package fieldjournal

import "embed"

// EmbeddedAssets contains static assets shipped with the journal: the stock
// stylesheet served at /public/site.css.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

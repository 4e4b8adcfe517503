// Package marclsp provides the editor-intelligence core for MARC catalog
// records in MRK notation: parsing, structural validation, and tag
// documentation lookup for hover and completion.
//
// # Quick Start
//
//	import (
//	    ml "github.com/gomarc/marclsp"
//	    "github.com/gomarc/marclsp/datasets"
//	    "github.com/gomarc/marclsp/engine"
//	    "github.com/gomarc/marclsp/kb"
//	    "github.com/gomarc/marclsp/marc"
//	)
//
//	base, err := kb.Load(datasets.Bundled()...)
//	if err != nil {
//	    log.Fatal(err) // a corrupt bundled dataset is fatal
//	}
//
//	rec, diags := marc.Parse(text)
//	v := engine.New(base)
//	result := v.Validate(ctx, rec)
//	for _, d := range append(diags, result.Diagnostics...) {
//	    fmt.Println(d)
//	}
//
// # Architecture
//
// The core is split along the data flow:
//
//   - marc: MRK grammar with line-level error recovery; every node carries
//     its source span for diagnostic positioning
//   - kb + datasets: immutable knowledge base merged from ordered bundled
//     datasets (bibliographic, holdings, fixed fields)
//   - cache: two-tier (memory LRU + disk) documentation cache with TTL
//     staleness and per-key singleflight deduplication
//   - loc: Library of Congress page fetcher with best-effort scraping
//   - resolver: knowledge base, then cache, then remote, with
//     serve-stale-on-error degradation
//   - engine: structural validation rules over a parsed record
//   - provider: hover and completion built on the resolver
//
// A hover or completion request always produces a usable answer; network
// and lookup failures degrade to stale cache entries or a generic
// "no documentation available" result, never to an error.
package marclsp

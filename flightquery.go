// Package flightquery lets an analyst explore a dataset of point-to-point
// vehicle movements with natural-language questions.
//
// Usage:
//
//	import (
//	    "github.com/spektr-org/flightquery/engine"
//	    "github.com/spektr-org/flightquery/schema"
//	    "github.com/spektr-org/flightquery/translator"
//	)
//
//	reg := schema.Default()
//	t := translator.New(translator.NewAnthropic(translator.DefaultAnthropicConfig(key)), reg)
//	res, err := t.Translate(ctx, "flights to Laredo above 500 ft in the last 24 hours")
//	filtered, err := engine.Apply(view, res.Filters, reg)
//	summary := engine.Summarize(filtered)
//
// The translator is the only component that calls an external service. Its
// output is parsed and validated against the registry before anything is
// applied; the engine itself is pure and local.
//
// The session package layers chat-derived filters over manually set ones and
// keeps per-session chat history.
package flightquery

// Package selector extracts structured fields from unstable markup.
//
// # Field rules
//
// Every logical field (title, location, age, images, ...) is described by
// a FieldRule: an ordered list of Strategy values, each a CSS selector or
// an XPath expression in text or attribute mode. A single generic resolver
// consumes the rules; there is no per-field code.
//
// Resolution runs in three tiers:
//
//  1. Structural: strategies in declared order, first non-empty wins
//  2. Meta: document <meta> tags, only when every strategy failed
//  3. Regex: patterns over free text, only when no structural tier matched
//
// Design decision: Rules are ordered precision first, recall last. Early
// strategies name exact classes; late ones are broad substring matches
// such as div[class*="location"]. When the site changes its markup the
// precise selectors stop matching and the broad ones keep the field
// populated until the rules are updated.
//
// # Absence
//
// A field that no tier resolves is absent. That is an expected outcome
// and never aborts extraction of the remaining fields.
//
// # Rule sets
//
// ListingRules and DetailRules hold the declared rules for result cards
// and detail pages. RuleSet.Override replaces strategies from a site
// profile without code changes.
package selector

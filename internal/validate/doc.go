// Package validate measures how well the extraction rules fit a set of
// saved pages.
//
// Every strategy of the listing and detail rule sets is run against every
// HTML file of a directory (typically the snapshots written by the
// mapper or by a failed search). Each strategy is then classified as
// ALWAYS, NEVER or SOMETIMES matching. Listing containers are resolved
// field by field for a coverage ratio, and every file records the detail
// fields the full resolver could not fill. A strategy that NEVER matches
// is a candidate for removal; a field with low coverage needs a new one.
package validate

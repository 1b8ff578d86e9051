// Package main provides the entry point for the listingscan CLI.
//
// listingscan searches, reads and maps classified listings on
// www.locanto.co.za through a URL-prefix proxy gateway, driving a headless
// browser so client-side rendered pages and anti-bot checks behave as they
// do for a person.
//
// Usage:
//
//	listingscan search -l cape-town dating
//	listingscan details <listing-url>
//	listingscan map [seed-url]
//
// See --help for all available options.
package main

// main is the entry point for listingscan.
func main() {
	Execute()
}

// Package main provides the entry point for the imgshare CLI.
//
// imgshare fingerprints images from partial downloads, reports images that
// were already seen on other sites, and groups sites by the images they
// share. Onion and I2P sites are fetched through the configured proxies.
//
// Usage:
//
//	imgshare scan <url>...
//	imgshare scan --list urls.txt
//	imgshare compare
//	imgshare groups --markdown -o groups.md
//
// See --help for all available options.
package main

// main is the entry point for imgshare.
func main() {
	Execute()
}

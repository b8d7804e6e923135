// Package daemon coordinates the long-running mangawatch process.
//
// It wires configuration, the SQLite store, the scraper loop, the
// notification relay, and the HTTP admin surface into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes the
// title registry and health operations the API handlers and CLI drive.
//
// Keep orchestration logic here: scraping and delivery mechanics live in
// their own packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon

// Package scraper runs the background scrape loop. Each cycle selects every
// title whose schedule is due and processes them strictly one at a time, with
// a randomized delay between titles and a shared cooldown that halts all
// scraping after an upstream rate-limit signal.
package scraper

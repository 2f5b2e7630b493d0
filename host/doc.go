// Package host runs a page outside a browser.
//
// Loop is the page's thread: every page call and every window message runs on
// it, one at a time. Window stands in for the browser window. It opens URLs in
// the system browser, prints alerts to the terminal and receives cross-window
// messages from the loopback bridge (package api), which hosts the page that
// actually opens the login popup.
package host

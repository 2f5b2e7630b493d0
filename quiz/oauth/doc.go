// Package oauth coordinates the popup based Google login.
//
// A login opens the auth endpoint in a centered popup window and waits for the
// popup to post a single message back to the opener. Only messages whose
// origin is exactly the trusted origin are considered. A payload of the form
// {"status": "success", "token": "..."} navigates the top-level window to the
// home URL; every other payload is ignored without any feedback.
//
// The coordinator never stores or forwards the token. When one is present it
// is decoded without verification so its subject and expiry can be logged.
//
// There is no timeout: the listener stays registered until Stop is called.
package oauth

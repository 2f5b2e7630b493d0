package websocket

import (
	"net/url"
	"strings"
)

// BuildURL appends the room code and nickname to endpoint as query
// parameters, room_code first. Both values are percent-encoded.
func BuildURL(endpoint, roomCode, nickname string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "room_code=" + url.QueryEscape(roomCode) + "&nickname=" + url.QueryEscape(nickname)
}

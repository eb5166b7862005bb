package commands

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/infinitybuddha29/caller/internal/client"
	"github.com/infinitybuddha29/caller/internal/roomname"
)

// parseRoomInput accepts a bare room ID or a link carrying one, either as
// /r/<id> in the path or as a ?room= query parameter.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room ID cannot be empty")
	}

	if strings.Contains(input, "://") {
		return extractRoomIDFromURL(input)
	}

	if !roomname.Valid(input) {
		return "", fmt.Errorf("invalid room ID %q", input)
	}
	return input, nil
}

func extractRoomIDFromURL(urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", client.NewError("parse URL", err)
	}

	if id := parsedURL.Query().Get("room"); id != "" {
		return id, nil
	}

	path := strings.TrimSuffix(parsedURL.Path, "/")
	parts := strings.Split(path, "/")

	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}

	return "", fmt.Errorf("could not extract room ID from URL: %s", urlStr)
}

// newRoomID picks a fresh room name for a caller that did not bring one,
// avoiding names the server lists as in use when it exposes its rooms.
func newRoomID(ctx context.Context, baseURL string) (string, error) {
	taken := map[string]bool{}
	if rooms, err := fetchRooms(ctx, baseURL); err == nil {
		for _, r := range rooms {
			taken[r.ID] = true
		}
	}
	return roomname.Unique(func(name string) bool { return taken[name] })
}

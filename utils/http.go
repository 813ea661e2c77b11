// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for Geoguessr API fetches. The short
// timeout keeps a hung request from starving the next scheduled tick.
var HTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}

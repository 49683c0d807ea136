package handlers

import (
	"net/http"
	"strconv"
)

// deviceIDParam returns the deviceId query parameter. Empty counts as absent.
func deviceIDParam(r *http.Request) (string, bool) {
	id := r.URL.Query().Get("deviceId")
	return id, id != ""
}

// intParam parses a non-negative integer query parameter made only of ASCII
// digits. Signs, spaces, decimals and values overflowing int are rejected.
func intParam(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

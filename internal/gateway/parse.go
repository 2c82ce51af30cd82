package gateway

import (
	"strconv"
	"strings"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
)

// pair is one "key=value" line of a set or gateway message.
type pair struct {
	key   string
	value string
}

// parsePairs splits a message into key=value pairs. Each line is split on
// its first '='; lines without '=' or with an empty key are dropped.
func parsePairs(body string) (pairs []pair, skipped int) {
	for _, line := range lines(body) {
		k, v, ok := strings.Cut(line, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			skipped++
			continue
		}
		pairs = append(pairs, pair{key: k, value: strings.TrimSpace(v)})
	}
	return pairs, skipped
}

// parseKeys returns the non-blank lines of a query message.
func parseKeys(body string) []string {
	var keys []string
	for _, line := range lines(body) {
		if k := strings.TrimSpace(line); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// parseDelay reads a delay command argument. Unparseable input yields the
// default delay; the result is clamped.
func parseDelay(arg string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil {
		d = config.DefaultDelay
	}
	return config.ClampDelay(d)
}

func lines(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	var out []string
	for _, l := range strings.Split(body, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

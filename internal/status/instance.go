package status

import (
	"fmt"
	"strconv"
	"strings"
)

// InstanceID identifies a hashpipe instance (and its status buffer) on a host.
type InstanceID int

// String returns the decimal form used in channel names and keys.
func (id InstanceID) String() string {
	return strconv.Itoa(int(id))
}

// ParseInstanceID parses the decimal string form of an instance id.
func ParseInstanceID(s string) (InstanceID, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInstance, s)
	}
	return InstanceID(n), nil
}

// ParseInstanceList parses a comma separated list such as "0,1,3".
// Duplicates are dropped; order of first appearance is kept.
func ParseInstanceList(s string) ([]InstanceID, error) {
	var ids []InstanceID
	seen := make(map[InstanceID]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := ParseInstanceID(part)
		if err != nil {
			return nil, err
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids, nil
}

package mqtt

import "fmt"

// DefaultPrefix is the root of all gateway topics.
const DefaultPrefix = "hashpipe"

// Topics builds the topics used by one gateway.
//
//	topics := mqtt.Topics{Prefix: "hashpipe", Gateway: "px1"}
//	topics.Status(0) // "hashpipe/px1/0/status"
type Topics struct {
	Prefix  string
	Gateway string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return t.Prefix
}

// Status is the retained snapshot topic of an instance.
func (t Topics) Status(instance int) string {
	return fmt.Sprintf("%s/%s/%d/status", t.prefix(), t.Gateway, instance)
}

// Availability is the retained online/offline topic of the gateway.
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/availability", t.prefix(), t.Gateway)
}

// AllStatus matches every instance status topic of every gateway.
func (t Topics) AllStatus() string {
	return t.prefix() + "/+/+/status"
}

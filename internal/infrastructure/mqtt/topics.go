package mqtt

import "fmt"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "homysync"

// Topics builds the topic names used by the state mirror.
//
// All topics share one prefix so several installations can share a broker:
//
//	topics := mqtt.NewTopics("homysync")
//	topics.State("door")  // "homysync/state/door"
//	topics.Command("light") // "homysync/command/light"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders under prefix (DefaultTopicPrefix if empty).
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// State returns the retained state topic for one device group.
//
// Example: homysync/state/lights
func (t Topics) State(group string) string {
	return fmt.Sprintf("%s/state/%s", t.Prefix(), group)
}

// Alert returns the door alert topic.
//
// Example: homysync/alert
func (t Topics) Alert() string {
	return t.Prefix() + "/alert"
}

// Command returns the command topic for one toggle target.
//
// Example: homysync/command/door
func (t Topics) Command(target string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix(), target)
}

// AllCommands returns a pattern matching every command topic.
//
// Pattern: homysync/command/+
func (t Topics) AllCommands() string {
	return t.Prefix() + "/command/+"
}

// Status returns the client's online/offline status topic.
//
// Example: homysync/status
func (t Topics) Status() string {
	return t.Prefix() + "/status"
}

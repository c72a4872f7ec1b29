package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "m2b/"

// Topics builds bridge topics under a prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("m2b/")
//	topics.DeviceAction("kitchen-ac", "send")
//	// Returns: "m2b/device/kitchen-ac/send"
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix. An empty prefix selects DefaultPrefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return Topics{prefix: prefix}
}

// Prefix returns the normalised prefix, always ending in "/".
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultPrefix
	}
	return t.prefix
}

// =============================================================================
// Command Topics
// =============================================================================

// DeviceAction returns the topic for an action on a device.
//
// Example: m2b/device/kitchen-ac/send
func (t Topics) DeviceAction(device, action string) string {
	return fmt.Sprintf("%sdevice/%s/%s", t.Prefix(), device, action)
}

// CommandAction returns the topic for an action on a stored command.
//
// Example: m2b/command/power_on/add_pronto
func (t Topics) CommandAction(command, action string) string {
	return fmt.Sprintf("%scommand/%s/%s", t.Prefix(), command, action)
}

// LogLevel returns the topic that changes the log level.
//
// Example: m2b/log/level
func (t Topics) LogLevel() string {
	return t.Prefix() + "log/level"
}

// =============================================================================
// System Topics
// =============================================================================

// Status returns the retained availability topic ("online"/"offline").
//
// Example: m2b/status
func (t Topics) Status() string {
	return t.Prefix() + "status"
}

// =============================================================================
// Subscription Patterns
// =============================================================================

// AllDeviceActions returns the wildcard for every device action.
func (t Topics) AllDeviceActions() string {
	return t.Prefix() + "device/+/+"
}

// AllCommandActions returns the wildcard for every command action.
func (t Topics) AllCommandActions() string {
	return t.Prefix() + "command/+/+"
}

// Subscriptions returns every filter the bridge subscribes to.
func (t Topics) Subscriptions() []string {
	return []string{
		t.AllDeviceActions(),
		t.AllCommandActions(),
		t.LogLevel(),
	}
}

// validatePublishTopic rejects empty topics and wildcards, which are only
// valid in subscriptions.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

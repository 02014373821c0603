// Package extractors pulls values out of command output into the hotplug
// overlay, where later tests and validators can reference them as variables.
package extractors

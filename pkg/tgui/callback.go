package tgui

import "strings"

// Data formats inline callback data as "scope:action" or "scope:action:payload".
// Payload is kept as-is (no escaping), so keep it to short identifiers.
func Data(scope, action, payload string) string {
	scope = strings.TrimSpace(scope)
	action = strings.TrimSpace(action)
	if payload == "" {
		return scope + ":" + action
	}
	return scope + ":" + action + ":" + payload
}

// SplitData parses callback data produced by Data. The payload part may be
// empty. ok is false when the input has no action part.
func SplitData(data string) (scope, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	scope, action = parts[0], parts[1]
	if len(parts) == 3 {
		payload = parts[2]
	}
	return scope, action, payload, scope != "" && action != ""
}

package openclaw

// PresenceClientCount returns the number of connected clients in a presence
// payload. The gateway reports clients either as a list or as a count.
func PresenceClientCount(presence map[string]interface{}) (int, bool) {
	switch clients := presence["clients"].(type) {
	case []interface{}:
		return len(clients), true
	case float64:
		return int(clients), true
	case int:
		return clients, true
	default:
		return 0, false
	}
}

// PresenceClients returns the client names from a list-form presence
// payload. Non-string entries are skipped.
func PresenceClients(presence map[string]interface{}) []string {
	list, ok := presence["clients"].([]interface{})
	if !ok {
		return nil
	}

	names := make([]string, 0, len(list))
	for _, entry := range list {
		if name, ok := entry.(string); ok {
			names = append(names, name)
		}
	}
	return names
}

// SnapshotUptimeMs returns the gateway uptime from a connect snapshot,
// looking at the top level and at a nested "snapshot" object.
func SnapshotUptimeMs(snapshot map[string]interface{}) (int64, bool) {
	if uptime, ok := snapshot["uptimeMs"].(float64); ok {
		return int64(uptime), true
	}
	if nested, ok := snapshot["snapshot"].(map[string]interface{}); ok {
		if uptime, ok := nested["uptimeMs"].(float64); ok {
			return int64(uptime), true
		}
	}
	return 0, false
}

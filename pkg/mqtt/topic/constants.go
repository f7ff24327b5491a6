package topic

// MQTT wildcard levels.
const (
	// Wildcard matches exactly one level: "iov/v1/ota/command/+".
	Wildcard = "+"

	// MultiWildcard matches the remaining levels and must come last:
	// "iov/v1/ota/#".
	MultiWildcard = "#"
)

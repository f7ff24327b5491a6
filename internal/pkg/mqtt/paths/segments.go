package paths

// Topic segments shared between the fleet backend and ota-backend.
// Full topics are {root}/{segment}/{deviceID}.

// Downstream: fleet -> device.
const (
	// OTACommand carries start requests.
	// Payload: {"ota_id": "...", "url": "...", "target_version": "..."}
	OTACommand = "ota/command"
)

// Upstream: device -> fleet.
const (
	// OTACommandAck acknowledges an OTACommand.
	// Payload: {"ota_id": "...", "accepted": true, "reason": "..."}
	OTACommandAck = "ota/command/ack"

	// OTAEvents carries one telemetry event per message.
	OTAEvents = "ota/events"

	// Online reports the retained online/offline state, also used as LWT.
	Online = "online"
)

package application

const (
	// eventTypeTrialIssued is emitted when a device receives its trial license.
	eventTypeTrialIssued = "trial.issued"
	// eventTypeTrialExpired is emitted once the expiry notice went out and the trial closed.
	eventTypeTrialExpired = "trial.expired"
	// eventTypeLicenseIssued is emitted per admin-minted paid license.
	eventTypeLicenseIssued = "license.issued"
	// eventTypeLicenseActivated is emitted when a planner claims a license.
	eventTypeLicenseActivated = "license.activated"
	// eventTypeDeviceRegistered is emitted when a new device binds to a license.
	eventTypeDeviceRegistered = "license.device_registered"
	// eventTypeDeviceRevoked is emitted when a device is removed from a license.
	eventTypeDeviceRevoked = "license.device_revoked"
	// eventTypeLicenseSuperseded is emitted when a license is retired.
	eventTypeLicenseSuperseded = "license.superseded"
)

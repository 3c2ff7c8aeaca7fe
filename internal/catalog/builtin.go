package catalog

// BuiltIn returns the messages shown by the stock dashboard.
func BuiltIn() *Catalog {
	return &Catalog{
		Name: "dashboard",
		Alerts: []AlertTemplate{
			{Title: "Low battery warning", Description: "{drone} reported battery below the safe return threshold."},
			{Title: "Signal degradation", Description: "Telemetry link with {drone} is dropping packets."},
			{Title: "Geofence breach", Description: "{drone} crossed the boundary of its assigned zone."},
			{Title: "Obstacle detected", Description: "{drone} triggered collision avoidance and is holding position."},
			{Title: "Motor temperature high", Description: "{drone} motor temperature exceeded operating limits."},
		},
		Activities: []string{
			"New report registered in the east zone",
			"Drone DJI-01 completed a mapping mission",
			"Weekly report generated automatically",
			"System updated to version 2.1.0",
		},
	}
}

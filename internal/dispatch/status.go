package dispatch

// GateStatus is the diagnostic view of the rate gate.
type GateStatus struct {
	MinuteCount int `json:"minute_count"`
	HourCount   int `json:"hour_count"`
	PerMinute   int `json:"requests_per_minute"`
	PerHour     int `json:"requests_per_hour"`
}

// Status is the combined diagnostic snapshot served by the status endpoint
// and CLI. Reading it never mutates dispatch state.
type Status struct {
	Mode          string             `json:"mode"`
	RealAvailable bool               `json:"real_available"`
	AllowFallback bool               `json:"allow_fallback"`
	Gate          GateStatus         `json:"gate"`
	Credentials   []CredentialStatus `json:"credentials"`
}

// Limits returns the configured gate ceilings.
func (g *Gate) Limits() (perMinute, perHour int) {
	return g.perMinute, g.perHour
}

// Status assembles the diagnostic snapshot from the dispatcher's collaborators.
func (d *Dispatcher) Status() Status {
	minute, hour := d.gate.Counts()
	perMinute, perHour := d.gate.Limits()

	return Status{
		Mode:          d.arbiter.Mode(),
		RealAvailable: d.arbiter.RealAvailable(),
		AllowFallback: d.arbiter.AllowFallback(),
		Gate: GateStatus{
			MinuteCount: minute,
			HourCount:   hour,
			PerMinute:   perMinute,
			PerHour:     perHour,
		},
		Credentials: d.ring.StatusReport(),
	}
}

package storage

import "time"

// PointSnapshot is one persisted polling bucket of the monitored
// points. Nil fields mean the point could not be read that tick.
type PointSnapshot struct {
	Bucket          time.Time
	Temperature     *float64
	ZoneSetpoint    *float64
	HeatingSetpoint *float64
	CoolingSetpoint *float64
	SystemMode      *string
	PeakSavings     *bool
	FanStatus       *bool
	Status          string
	Error           *string
	CreatedAt       time.Time
}

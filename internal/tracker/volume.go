package tracker

import "math"

// VolumeToDB converts REAPER's linear volume to decibels.
// Zero or negative volume is silence, reported as -Inf.
func VolumeToDB(volume float64) float64 {
	if volume <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(volume)
}

// DBToVolume is the inverse conversion; -Inf maps back to zero.
func DBToVolume(db float64) float64 {
	if math.IsInf(db, -1) {
		return 0
	}
	return math.Pow(10, db/20)
}

package models

import "time"

// AlphaSession is one session parsed from an Alpha Progression CSV export.
type AlphaSession struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []AlphaExercise
}

// AlphaExercise is a single exercise within an Alpha Progression session.
type AlphaExercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []AlphaSet
}

// AlphaSet is a working or warm-up set.
type AlphaSet struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              float64
	IsWarmup         bool
}

// AppleEpochOffset is the number of seconds between the Unix epoch and
// the Apple Core Data epoch (2001-01-01).
const AppleEpochOffset int64 = 978307200

// AppleTimestampToTime converts seconds since 2001-01-01 to UTC time.
func AppleTimestampToTime(appleTS float64) time.Time {
	sec := int64(appleTS)
	nsec := int64((appleTS - float64(sec)) * 1e9)
	return time.Unix(sec+AppleEpochOffset, nsec).UTC()
}

// HAEFileWorkout is the JSON inside an AutoSync workout .hae file.
type HAEFileWorkout struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	Duration      float64  `json:"duration"`
	ActiveEnergy  *float64 `json:"activeEnergy,omitempty"`  // kcal
	TotalDistance *float64 `json:"totalDistance,omitempty"` // km
	ElevationUp   *float64 `json:"elevationUp,omitempty"`
	Location      string   `json:"location,omitempty"`
}

// HAEWorkout converts the file form to the REST API form.
func (f HAEFileWorkout) HAEWorkout() HAEWorkout {
	w := HAEWorkout{
		ID:       f.ID,
		Name:     f.Name,
		Start:    HAETime{Time: AppleTimestampToTime(f.Start)},
		End:      HAETime{Time: AppleTimestampToTime(f.End)},
		Duration: f.Duration,
		Location: f.Location,
	}
	if f.ActiveEnergy != nil {
		w.ActiveEnergyBurned = &HAEQuantity{Qty: *f.ActiveEnergy, Units: "kcal"}
	}
	if f.TotalDistance != nil {
		w.Distance = &HAEQuantity{Qty: *f.TotalDistance, Units: "km"}
	}
	if f.ElevationUp != nil {
		w.ElevationUp = &HAEQuantity{Qty: *f.ElevationUp, Units: "m"}
	}
	return w
}

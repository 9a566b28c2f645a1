package models

// RandomSeed is the single persisted seed row backing juror selection. The
// value advances with every draw; see internal/rng for the recurrence.
type RandomSeed struct {
	ID    int64 `gorm:"column:id;primaryKey"`
	Value int64 `gorm:"column:value;not null;default:0"`
}

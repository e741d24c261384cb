package compress

// PercentFunc receives compression progress in the 0..100 range
type PercentFunc func(percent int)

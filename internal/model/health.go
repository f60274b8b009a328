package model

// HealthReport is a point-in-time liveness snapshot of every backend the
// registry knows about. It is always fully populated: a probe failure on
// one backend is recorded as false and never prevents probing the others.
type HealthReport struct {
	Primary   bool   `json:"primary"`
	Replicas  []bool `json:"replicas"`
	Shards    []bool `json:"shards"`
	Analytics bool   `json:"analytics"`
	Cache     bool   `json:"cache"`
}

// Healthy reports whether every backend passed its probe.
func (r HealthReport) Healthy() bool {
	if !r.Primary || !r.Analytics || !r.Cache {
		return false
	}
	for _, ok := range r.Replicas {
		if !ok {
			return false
		}
	}
	for _, ok := range r.Shards {
		if !ok {
			return false
		}
	}
	return true
}

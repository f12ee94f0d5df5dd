package models

const (
	HealthOK          = "ok"
	HealthUnreachable = "unreachable"
)

// HealthStatus contains health status of the units the service depends on.
type HealthStatus struct {
	Database string `json:"database"`
}

func (h HealthStatus) Healthy() bool {
	return h.Database == HealthOK
}

package domain

import "fmt"

// AlertType is the severity of a stock alert.
type AlertType string

const (
	AlertCritical AlertType = "critical"
	AlertWarning  AlertType = "warning"
)

// Alert is raised for a medicine whose status needs attention.
type Alert struct {
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
}

// AlertFor returns the alert raised by status for the named medicine, or
// nil. OUT_OF_STOCK and EXPIRED are critical; LOW_STOCK and EXPIRES_SOON
// are warnings.
func AlertFor(status Status, medicineName string) *Alert {
	var t AlertType
	switch {
	case status.IsCritical():
		t = AlertCritical
	case status.IsWarning():
		t = AlertWarning
	default:
		return nil
	}
	return &Alert{Type: t, Message: fmt.Sprintf("%s is %s", medicineName, status)}
}

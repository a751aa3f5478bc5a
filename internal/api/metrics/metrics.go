// Package metrics defines the account API's Prometheus collectors. Call
// Register with the registry the router exposes on /metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "account"

// Registration results.
const (
	ResultSuccess            = "success"
	ResultInvalid            = "invalid"
	ResultConflict           = "conflict"
	ResultInvalidCredentials = "invalid_credentials"
	ResultError              = "error"
)

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "invalid", "conflict" or "error"
var RegistrationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts login attempts.
// Label:
//   - result: "success", "invalid_credentials" or "error"
var LoginsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

var TokensIssuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tokens_issued_total",
		Help:      "Total number of access tokens issued.",
	},
)

// RolesProvisionedTotal counts default-role provisioning during registration.
// Label:
//   - outcome: "created" or "already_exists"
var RolesProvisionedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "roles_provisioned_total",
		Help:      "Total number of role provisioning decisions, by outcome.",
	},
	[]string{"outcome"},
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		RegistrationsTotal,
		LoginsTotal,
		TokensIssuedTotal,
		RolesProvisionedTotal,
	}
}

// Register adds every collector to reg. Collectors already registered with
// reg are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

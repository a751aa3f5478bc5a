package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second Register returned error: %v", err)
	}
}

func TestRegister_ExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	TokensIssuedTotal.Inc()
	LoginsTotal.WithLabelValues(ResultSuccess).Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	seen := make(map[string]bool)
	for _, mf := range families {
		seen[mf.GetName()] = true
	}
	for _, name := range []string{"account_logins_total", "account_tokens_issued_total"} {
		if !seen[name] {
			t.Fatalf("expected %s to be exposed, got %v", name, seen)
		}
	}
}

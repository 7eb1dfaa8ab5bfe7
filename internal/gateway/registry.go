// Package gateway holds the adapter registry and the eligibility gate shared
// by all payment provider integrations.
package gateway

import (
	"fmt"
	"sort"
	"strings"

	"github.com/paybridge/paybridge/internal/domain"
)

// Registry maps gateway names to adapters. Gateway-specific behavior lives
// behind the domain.Gateway interface rather than in caller branching.
type Registry struct {
	gateways map[string]domain.Gateway
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{gateways: make(map[string]domain.Gateway)}
}

// Register adds an adapter under its own name. Registering the same name
// twice replaces the earlier adapter.
func (r *Registry) Register(g domain.Gateway) {
	r.gateways[g.Name()] = g
}

// Resolve returns the adapter for a gateway selection. Country-scoped
// gateways register under "<name>_<cc>" (e.g. mercadopago_ar), so a
// selection with a country first tries the composite key and then falls
// back to the bare name.
func (r *Registry) Resolve(name, country string) (domain.Gateway, error) {
	if country != "" {
		if g, ok := r.gateways[name+"_"+strings.ToLower(country)]; ok {
			return g, nil
		}
	}
	if g, ok := r.gateways[name]; ok {
		return g, nil
	}
	return nil, domain.NewPaymentError(domain.ErrUnsupportedGateway,
		fmt.Sprintf("no adapter registered for gateway %q", name), "UNSUPPORTED_GATEWAY")
}

// Names lists the registered gateway names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckEligibility rejects a gateway selection before any external call is
// made: the gateway must settle the order's currency and, when it is
// country-gated, operate in the requested country.
func CheckEligibility(g domain.Gateway, order *domain.Order, country string) error {
	if !contains(g.SupportedCurrencies(), strings.ToUpper(order.OriginalCurrency)) {
		return domain.NewPaymentError(domain.ErrUnsupportedCurrency,
			fmt.Sprintf("gateway %s cannot settle %s", g.Name(), order.OriginalCurrency),
			"UNSUPPORTED_CURRENCY")
	}
	if countries := g.SupportedCountries(); len(countries) > 0 {
		if !contains(countries, strings.ToUpper(country)) {
			return domain.NewPaymentError(domain.ErrUnsupportedCountry,
				fmt.Sprintf("gateway %s does not operate in %q", g.Name(), country),
				"UNSUPPORTED_COUNTRY")
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

package carrier

import "github.com/pkg/errors"

// Selector resolves the gateway for a carrier code. Carriers are chosen
// explicitly at add time: UPS and FedEx identifier shapes overlap, so
// guessing from the number format is not reliable.
type Selector struct {
	gateways       map[string]Gateway
	defaultCarrier string
}

func NewSelector(defaultCarrier string) *Selector {
	return &Selector{
		gateways:       make(map[string]Gateway),
		defaultCarrier: defaultCarrier,
	}
}

func (s *Selector) Register(carrierCode string, gw Gateway) *Selector {
	s.gateways[carrierCode] = gw
	return s
}

func (s *Selector) DefaultCarrier() string { return s.defaultCarrier }

func (s *Selector) Gateway(carrierCode string) (Gateway, error) {
	if carrierCode == "" {
		carrierCode = s.defaultCarrier
	}
	gw, ok := s.gateways[carrierCode]
	if !ok {
		return nil, errors.Errorf("no gateway configured for carrier %q", carrierCode)
	}
	return gw, nil
}

// Known reports whether a gateway is configured for the carrier code.
func (s *Selector) Known(carrierCode string) bool {
	_, ok := s.gateways[carrierCode]
	return ok
}

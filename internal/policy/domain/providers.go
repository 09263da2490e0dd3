package domain

import (
	"encoding/json"
	"strings"
)

// Providers decodes the allow-list. A nil or empty list allows every provider.
func (p *AgentPolicy) Providers() []string {
	if p == nil || len(p.AllowedProviders) == 0 {
		return nil
	}
	var hosts []string
	if err := json.Unmarshal(p.AllowedProviders, &hosts); err != nil {
		return nil
	}
	return hosts
}

// ProviderAllowed reports whether the agent may pay the given provider host.
func (p *AgentPolicy) ProviderAllowed(host string) bool {
	hosts := p.Providers()
	if len(hosts) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSpace(host))
	for _, allowed := range hosts {
		if strings.ToLower(strings.TrimSpace(allowed)) == host {
			return true
		}
	}
	return false
}

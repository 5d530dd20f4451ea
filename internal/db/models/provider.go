package models

import "encoding/json"

// ProviderID represents a unique identifier for a cloud provider
type ProviderID string

// Provider constants define the supported cloud providers
const (
	// ProviderCloudStack represents a CloudStack endpoint
	ProviderCloudStack ProviderID = "cloudstack"
	// ProviderDO represents DigitalOcean actions
	ProviderDO ProviderID = "do"
	// ProviderRoute53 represents Route53 record changes
	ProviderRoute53 ProviderID = "route53"

	// Mock Providers
	// ProviderDOMock represents a DigitalOcean provider backed by mocks
	ProviderDOMock ProviderID = "do-mock"
)

// String implements the fmt.Stringer interface
func (p ProviderID) String() string {
	return string(p)
}

// MarshalJSON implements the json.Marshaler interface
func (p ProviderID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (p *ProviderID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	*p = ProviderID(str)
	return nil
}

// IsValid checks if the provider ID is a valid supported provider
func (p ProviderID) IsValid() bool {
	switch p {
	case ProviderCloudStack, ProviderDO, ProviderRoute53:
		return true
	case ProviderDOMock: // mocked provider
		return true
	default:
		return false
	}
}

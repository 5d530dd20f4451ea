package mocks

import (
	"fmt"
	"net/http"
	"time"

	"github.com/digitalocean/godo"
)

// Default test values for regions
var (
	DefaultRegion            = "nyc1"
	DefaultUnavailableRegion = "sfo1"
)

// Default test values for reserved IPs
var (
	DefaultReservedIP1  = "198.51.100.10"
	DefaultReservedIP2  = "198.51.100.11"
	DefaultAssignedIP   = "198.51.100.20"
	DefaultNewIP        = "198.51.100.99"
	DefaultDropletID    = 12345
	DefaultDropletName  = "test-droplet-1"
	DefaultAssignAction = 4242
)

// Default test values for SSH keys. The fingerprints are the MD5 fingerprints
// of the public keys.
var (
	DefaultKeyID1          = 67890
	DefaultKeyID2          = 67891
	DefaultKeyName1        = "test-key-1"
	DefaultKeyName2        = "test-key-2"
	DefaultKeyPublicKey1   = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIMoqn43OXekvRXznek0klaDy5hulhilUA/nRbC+3julV test@cloudjob"
	DefaultKeyPublicKey2   = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIGMHuzJjfYP1keIxSGA7A2s0TREN+bF6afwOyFhrBXlW other@cloudjob"
	DefaultKeyFingerprint1 = "51:a0:69:81:57:27:a6:4e:33:1c:3c:63:1f:aa:a2:34"
	DefaultKeyFingerprint2 = "a5:8c:94:ec:f8:b2:13:3c:9c:9d:0c:4b:bb:3c:dc:0c"
)

// Error values
var (
	ErrRateLimit      = apiError(http.StatusTooManyRequests, "API Rate limit exceeded")
	ErrAuthentication = apiError(http.StatusUnauthorized, "Unable to authenticate you")
	ErrNotFound       = apiError(http.StatusNotFound, "The resource you were accessing could not be found.")
	ErrKeyInUse       = apiError(http.StatusUnprocessableEntity, "SSH Key is already in use on your account")
)

// apiError builds the error godo returns for a failed request
func apiError(status int, message string) *godo.ErrorResponse {
	return &godo.ErrorResponse{
		Response: &http.Response{
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Request:    &http.Request{Method: http.MethodGet},
		},
		Message: message,
	}
}

// StandardResponses contains all standard mock responses
type StandardResponses struct {
	Regions     []godo.Region
	ReservedIPs []godo.ReservedIP
	Keys        []godo.Key
	// Action is returned by Get and Assign, with the requested id
	Action *godo.Action
}

// newStandardResponses creates a new set of standard responses
func newStandardResponses() *StandardResponses {
	nyc := &godo.Region{Slug: DefaultRegion, Name: "New York 1", Available: true}
	started := godo.Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}

	return &StandardResponses{
		Regions: []godo.Region{
			*nyc,
			{Slug: DefaultUnavailableRegion, Name: "San Francisco 1", Available: false},
		},
		ReservedIPs: []godo.ReservedIP{
			{IP: DefaultAssignedIP, Region: nyc, Droplet: &godo.Droplet{ID: DefaultDropletID, Name: DefaultDropletName}},
			{IP: DefaultReservedIP1, Region: nyc},
			{IP: DefaultReservedIP2, Region: nyc},
		},
		Keys: []godo.Key{
			{ID: DefaultKeyID1, Name: DefaultKeyName1, PublicKey: DefaultKeyPublicKey1, Fingerprint: DefaultKeyFingerprint1},
		},
		Action: &godo.Action{
			ID:           DefaultAssignAction,
			Status:       godo.ActionCompleted,
			Type:         "assign_ip",
			StartedAt:    &started,
			ResourceType: "reserved_ip",
			RegionSlug:   DefaultRegion,
		},
	}
}

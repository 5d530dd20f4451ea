package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/celestiaorg/cloudjob/internal/types"
)

// ResultKind tags the decoded variant held by a Result
type ResultKind int

// Result kinds. Everything between KindText and KindOpaque decodes into the
// matching struct of the types package.
const (
	KindNone ResultKind = iota
	KindText
	KindVirtualMachine
	KindPublicIPAddress
	KindPortForwardingRule
	KindIPForwardingRule
	KindFirewallRule
	KindSecurityGroup
	KindTemplate
	KindNetwork
	KindVolume
	KindSuccess
	KindOpaque
)

var kindNames = []string{
	"none",
	"text",
	"virtualmachine",
	"ipaddress",
	"portforwardingrule",
	"ipforwardingrule",
	"firewallrule",
	"securitygroup",
	"template",
	"network",
	"volume",
	"success",
	"opaque",
}

func (k ResultKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseResultKind converts a kind name back to ResultKind
func ParseResultKind(str string) (ResultKind, error) {
	for i, name := range kindNames {
		if name == str {
			return ResultKind(i), nil
		}
	}
	return KindNone, fmt.Errorf("invalid result kind: %s", str)
}

// MarshalJSON implements the json.Marshaler interface for ResultKind
func (k ResultKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for ResultKind
func (k *ResultKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	kind, err := ParseResultKind(str)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// Result is the decoded payload of a finished job. Value holds a *types.X for
// the known kinds, a string for KindText and a map[string]any (numbers kept as
// json.Number) for KindOpaque. Raw always keeps the payload as received.
type Result struct {
	Kind  ResultKind      `json:"kind"`
	Value any             `json:"value,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// shape describes how one known kind is recognized. key is the wrapper the
// provider nests the object under; fields is the signature a bare object must
// carry to be taken for this kind.
type shape struct {
	kind   ResultKind
	key    string
	fields []string
	decode func(json.RawMessage) (any, error)
}

func decodeInto[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// shapes is in priority order
var shapes = []shape{
	{KindVirtualMachine, "virtualmachine", []string{"id", "serviceofferingid", "templateid"}, decodeInto[types.VirtualMachine]},
	{KindPublicIPAddress, "ipaddress", []string{"id", "ipaddress", "issourcenat"}, decodeInto[types.PublicIPAddress]},
	{KindPortForwardingRule, "portforwardingrule", []string{"id", "privateport", "publicport"}, decodeInto[types.PortForwardingRule]},
	{KindIPForwardingRule, "ipforwardingrule", []string{"id", "ipaddressid", "startport", "virtualmachineid"}, decodeInto[types.IPForwardingRule]},
	{KindFirewallRule, "firewallrule", []string{"id", "ipaddressid", "startport", "cidrlist"}, decodeInto[types.FirewallRule]},
	{KindSecurityGroup, "securitygroup", []string{"id", "name", "ingressrule"}, decodeInto[types.SecurityGroup]},
	{KindTemplate, "template", []string{"id", "ostypeid", "format"}, decodeInto[types.Template]},
	{KindNetwork, "network", []string{"id", "networkofferingid", "zoneid"}, decodeInto[types.Network]},
	{KindVolume, "volume", []string{"id", "storagetype", "size"}, decodeInto[types.Volume]},
	{KindSuccess, "", []string{"success"}, decodeInto[types.SuccessResponse]},
}

func (s shape) matches(obj map[string]json.RawMessage) bool {
	for _, f := range s.fields {
		if _, ok := obj[f]; !ok {
			return false
		}
	}
	return true
}

// Resolver decodes job results. It never fails: a payload matching no known
// shape is returned as KindOpaque.
type Resolver struct{}

// NewResolver creates a Resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// ordered returns the shapes with the one for hint moved to the front
func ordered(hint ResultKind) []shape {
	out := make([]shape, 0, len(shapes))
	for _, s := range shapes {
		if s.kind == hint {
			out = append(out, s)
		}
	}
	for _, s := range shapes {
		if s.kind != hint {
			out = append(out, s)
		}
	}
	return out
}

// Resolve decodes rec.Result. hint is the kind the caller expects and is tried
// first; pass KindNone when there is no expectation.
func (r *Resolver) Resolve(rec *Record, hint ResultKind) *Result {
	raw := json.RawMessage(bytes.TrimSpace(rec.Result))
	if len(raw) == 0 || string(raw) == "null" {
		return &Result{Kind: KindNone}
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &Result{Kind: KindText, Value: s, Raw: raw}
		}
	}
	if strings.EqualFold(rec.ResultType, "text") || raw[0] != '{' {
		return &Result{Kind: KindText, Value: string(raw), Raw: raw}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &Result{Kind: KindText, Value: string(raw), Raw: raw}
	}

	candidates := ordered(hint)
	for _, s := range candidates {
		if s.key == "" {
			continue
		}
		payload, ok := obj[s.key]
		if !ok || !isObject(payload) {
			continue
		}
		if v, err := s.decode(payload); err == nil {
			return &Result{Kind: s.kind, Value: v, Raw: raw}
		}
	}

	for _, s := range candidates {
		if !s.matches(obj) {
			continue
		}
		if v, err := s.decode(raw); err == nil {
			return &Result{Kind: s.kind, Value: v, Raw: raw}
		}
	}

	return opaque(raw)
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

func opaque(raw json.RawMessage) *Result {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return &Result{Kind: KindOpaque, Value: map[string]any{"raw": string(raw)}, Raw: raw}
	}
	return &Result{Kind: KindOpaque, Value: m, Raw: raw}
}

// As extracts the value of res as T. Known kinds can be requested either as
// *types.X or types.X.
func As[T any](res *Result) (T, bool) {
	var zero T
	if res == nil || res.Value == nil {
		return zero, false
	}
	if v, ok := res.Value.(T); ok {
		return v, true
	}
	if p, ok := res.Value.(*T); ok && p != nil {
		return *p, true
	}
	return zero, false
}

// KindOf returns the kind a result must have to be extracted as T
func KindOf[T any]() ResultKind {
	var zero T
	switch any(zero).(type) {
	case *types.VirtualMachine, types.VirtualMachine:
		return KindVirtualMachine
	case *types.PublicIPAddress, types.PublicIPAddress:
		return KindPublicIPAddress
	case *types.PortForwardingRule, types.PortForwardingRule:
		return KindPortForwardingRule
	case *types.IPForwardingRule, types.IPForwardingRule:
		return KindIPForwardingRule
	case *types.FirewallRule, types.FirewallRule:
		return KindFirewallRule
	case *types.SecurityGroup, types.SecurityGroup:
		return KindSecurityGroup
	case *types.Template, types.Template:
		return KindTemplate
	case *types.Network, types.Network:
		return KindNetwork
	case *types.Volume, types.Volume:
		return KindVolume
	case *types.SuccessResponse, types.SuccessResponse:
		return KindSuccess
	case string:
		return KindText
	case map[string]any:
		return KindOpaque
	}
	return KindNone
}

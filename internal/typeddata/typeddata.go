// Package typeddata builds the structured signing payload used for onboarding,
// and its deterministic plain-text stand-in for chains that cannot sign
// EIP-712 data.
package typeddata

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/Mohsinsiddi/w3connect/internal/catalog"
	"github.com/Mohsinsiddi/w3connect/internal/werr"
)

const (
	// DefaultPrimaryType is the message type name signed during onboarding.
	DefaultPrimaryType = "dYdX"
	// ActionField is the single message field carrying the action string.
	ActionField = "action"

	domainType = "EIP712Domain"
)

// Field declares one message field.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Value is one entry of the message data association list.
type Value struct {
	Name  string
	Value any
}

// Domain is the EIP-712 domain section.
type Domain struct {
	Name    string
	ChainID int64
	Version string // optional
}

// Message is the typed message section.
type Message struct {
	TypeName    string
	Definitions []Field
	Data        []Value
}

// Lookup returns the value stored for name.
func (m Message) Lookup(name string) (any, bool) {
	for _, v := range m.Data {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Set stores value for name, replacing an existing entry.
func (m *Message) Set(name string, value any) {
	for i := range m.Data {
		if m.Data[i].Name == name {
			m.Data[i].Value = value
			return
		}
	}
	m.Data = append(m.Data, Value{Name: name, Value: value})
}

// Delete removes the value stored for name.
func (m *Message) Delete(name string) {
	out := m.Data[:0]
	for _, v := range m.Data {
		if v.Name != name {
			out = append(out, v)
		}
	}
	m.Data = out
}

// Payload is a complete structured signing request.
type Payload struct {
	Domain  Domain
	Message Message
}

// Build returns the onboarding payload for domainName on chainID carrying action.
func Build(domainName string, chainID int64, action string) *Payload {
	return BuildWithType(DefaultPrimaryType, domainName, chainID, action)
}

// BuildWithType is Build with an explicit primary type name.
func BuildWithType(typeName, domainName string, chainID int64, action string) *Payload {
	return &Payload{
		Domain: Domain{Name: domainName, ChainID: chainID},
		Message: Message{
			TypeName:    typeName,
			Definitions: []Field{{Name: ActionField, Type: "string"}},
			Data:        []Value{{Name: ActionField, Value: action}},
		},
	}
}

// Validate reports whether every declared field has a value. The returned
// error is a LOCAL_VALIDATION WalletError.
func (p *Payload) Validate() error {
	if p == nil {
		return werr.New(werr.LocalValidation, "nil payload")
	}
	if p.Message.TypeName == "" {
		return werr.New(werr.LocalValidation, "missing primary type")
	}
	var missing []string
	for _, f := range p.Message.Definitions {
		if _, ok := p.Message.Lookup(f.Name); !ok {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return werr.Newf(werr.LocalValidation, "missing values for %s", strings.Join(missing, ", "))
	}
	return nil
}

// Valid is Validate reduced to a bool.
func (p *Payload) Valid() bool {
	return p.Validate() == nil
}

// TypedData converts the payload into go-ethereum's EIP-712 representation.
func (p *Payload) TypedData() (apitypes.TypedData, error) {
	if err := p.Validate(); err != nil {
		return apitypes.TypedData{}, err
	}

	domainFields := []apitypes.Type{{Name: "name", Type: "string"}}
	if p.Domain.Version != "" {
		domainFields = append(domainFields, apitypes.Type{Name: "version", Type: "string"})
	}
	domainFields = append(domainFields, apitypes.Type{Name: "chainId", Type: "uint256"})

	fields := make([]apitypes.Type, len(p.Message.Definitions))
	for i, f := range p.Message.Definitions {
		fields[i] = apitypes.Type{Name: f.Name, Type: f.Type}
	}

	msg := make(apitypes.TypedDataMessage, len(p.Message.Data))
	for _, v := range p.Message.Data {
		msg[v.Name] = v.Value
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			domainType:         domainFields,
			p.Message.TypeName: fields,
		},
		PrimaryType: p.Message.TypeName,
		Domain: apitypes.TypedDataDomain{
			Name:    p.Domain.Name,
			Version: p.Domain.Version,
			ChainId: math.NewHexOrDecimal256(p.Domain.ChainID),
		},
		Message: msg,
	}, nil
}

// Hash returns the EIP-712 digest that a wallet signs for this payload.
func (p *Payload) Hash() ([]byte, error) {
	td, err := p.TypedData()
	if err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, werr.Wrap(werr.LocalValidation, fmt.Errorf("hashing typed data: %w", err))
	}
	return hash, nil
}

// JSON returns the eth_signTypedData_v4 request body.
func (p *Payload) JSON() ([]byte, error) {
	td, err := p.TypedData()
	if err != nil {
		return nil, err
	}
	return json.Marshal(td)
}

// plainMessage is the fixed shape signed by chains without typed data support.
// Field order is fixed by the struct so the encoding is byte-stable.
type plainMessage struct {
	Domain      plainDomain `json:"domain"`
	PrimaryType string      `json:"primaryType"`
	Message     plainAction `json:"message"`
}

type plainDomain struct {
	Name string `json:"name"`
}

type plainAction struct {
	Action string `json:"action"`
}

// PlainMessage returns the deterministic text message for domainName and
// action. Identical inputs always yield byte-identical output: the derived
// key depends on the exact signature over this exact string.
func PlainMessage(domainName, action string) string {
	b, _ := json.Marshal(plainMessage{
		Domain:      plainDomain{Name: domainName},
		PrimaryType: DefaultPrimaryType,
		Message:     plainAction{Action: action},
	})
	return string(b)
}

// Request is what gets signed on one chain family: a typed payload, or a
// plain message when the family cannot sign structured data.
type Request struct {
	Payload *Payload
	Plain   string
}

// Typed reports whether r carries a structured payload.
func (r Request) Typed() bool {
	return r.Payload != nil
}

// ForChain builds the onboarding signing request for family.
func ForChain(family catalog.ChainFamily, domainName string, chainID int64, action string) Request {
	if family.SupportsTypedData() {
		return Request{Payload: Build(domainName, chainID, action)}
	}
	return Request{Plain: PlainMessage(domainName, action)}
}

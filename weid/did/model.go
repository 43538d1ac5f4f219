package did

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/exp/slices"

	"github.com/pilacorp/go-weid-sdk/weid/codec"
)

// AuthenticationType is the verification method type of every
// authentication entry.
const AuthenticationType = "Secp256k1VerificationKey2018"

// authenticationIDPrefix is the fragment prefix of default authentication ids.
const authenticationIDPrefix = "keys-"

// Document is a WeIdentity DID document.
type Document struct {
	Id             string                   `json:"id"`
	Authentication []AuthenticationProperty `json:"authentication"`
	Service        []ServiceProperty        `json:"service"`
}

// AuthenticationProperty is a public key authorised to act for the DID.
type AuthenticationProperty struct {
	Id                 string `json:"id"`
	Type               string `json:"type"`
	Controller         string `json:"controller"`
	PublicKeyMultibase string `json:"publicKeyMultibase"`
}

// ServiceProperty is a typed service endpoint published in the document.
type ServiceProperty struct {
	Id              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// DocumentMetadata is ledger-maintained metadata of a document.
type DocumentMetadata struct {
	Created     int64 `json:"created"`
	Updated     int64 `json:"updated"`
	Deactivated bool  `json:"deactivated"`
	VersionId   int   `json:"versionId"`
}

// DefaultID derives the id of a document entry from seed material:
// <weId>#<prefix><digest(seed)>. It is used for both authentication
// (prefix "keys-") and service (no prefix) entries.
func DefaultID(weId, prefix, seed string) string {
	return weId + "#" + prefix + codec.Digest(seed)
}

// DefaultAuthenticationID is DefaultID for an authentication key.
func DefaultAuthenticationID(weId, publicKeyMultibase string) string {
	return DefaultID(weId, authenticationIDPrefix, publicKeyMultibase)
}

// DefaultServiceID is DefaultID for a service endpoint.
func DefaultServiceID(weId, serviceEndpoint string) string {
	return DefaultID(weId, "", serviceEndpoint)
}

// NewDocument creates the initial document of a DID, seeded with the
// creator's key as its only authentication entry.
func NewDocument(weId, publicKeyMultibase string) *Document {
	return &Document{
		Id: weId,
		Authentication: []AuthenticationProperty{{
			Id:                 DefaultAuthenticationID(weId, publicKeyMultibase),
			Type:               AuthenticationType,
			Controller:         weId,
			PublicKeyMultibase: publicKeyMultibase,
		}},
		Service: []ServiceProperty{},
	}
}

// Clone returns a deep copy of the document.
func (doc *Document) Clone() *Document {
	if doc == nil {
		return nil
	}
	return &Document{
		Id:             doc.Id,
		Authentication: slices.Clone(doc.Authentication),
		Service:        slices.Clone(doc.Service),
	}
}

// Fingerprint is the Keccak-256 hash of the document's JSON encoding.
//
// Ledger engines compare it on update to reject writes computed from a
// stale document.
func (doc *Document) Fingerprint() (string, error) {
	docJSON, err := doc.Canonical()
	if err != nil {
		return "", err
	}

	return strings.ToLower(crypto.Keccak256Hash(docJSON).Hex()), nil
}

// Canonical is the JSON encoding engines store. Absent lists encode as [].
func (doc *Document) Canonical() ([]byte, error) {
	docJSON, err := json.Marshal(doc.normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DID document: %w", err)
	}
	return docJSON, nil
}

// AuthenticationIndex returns the index of the first entry matching pred,
// or -1.
func (doc *Document) AuthenticationIndex(pred func(AuthenticationProperty) bool) int {
	return slices.IndexFunc(doc.Authentication, pred)
}

// ServiceIndex returns the index of the first service with id, or -1.
func (doc *Document) ServiceIndex(id string) int {
	return slices.IndexFunc(doc.Service, func(s ServiceProperty) bool { return s.Id == id })
}

// RemoveAuthentication deletes the entry at index i.
func (doc *Document) RemoveAuthentication(i int) {
	doc.Authentication = slices.Delete(doc.Authentication, i, i+1)
}

// normalized maps nil lists to empty ones so that a document and its
// decoded JSON round trip share one fingerprint.
func (doc *Document) normalized() *Document {
	n := *doc
	if n.Authentication == nil {
		n.Authentication = []AuthenticationProperty{}
	}
	if n.Service == nil {
		n.Service = []ServiceProperty{}
	}
	return &n
}

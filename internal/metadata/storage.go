// Package metadata stamps a drift-detection digest onto a libvirt domain
// using libvirt's custom XML metadata feature. The control plane's store is
// the only source of truth for a VirtualMachine's desired spec; this
// package exists solely so the reconciler can tell, without re-deriving and
// re-marshaling a domain XML on every reconcile pass, whether the
// last-applied definition still matches what is actually defined on the
// host.
package metadata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"

	"github.com/digitalocean/go-libvirt"
)

const (
	// Namespace is the XML namespace under which the drift digest is stored.
	Namespace = "https://vmcp.coreforge.io/v1alpha1"

	// Key is the metadata key used to store/retrieve the digest.
	Key = "vmcp-drift"
)

// LibvirtClient is the subset of *libvirt.Libvirt needed to stamp and read
// domain metadata, narrowed for dependency injection in tests.
type LibvirtClient interface {
	DomainSetMetadata(dom libvirt.Domain, typ int32, metadata libvirt.OptString, key libvirt.OptString, uri libvirt.OptString, flags libvirt.DomainModificationImpact) error
	DomainGetMetadata(dom libvirt.Domain, typ int32, uri libvirt.OptString, flags libvirt.DomainModificationImpact) (string, error)
}

// stamp is the XML structure stored in the domain's custom metadata element.
type stamp struct {
	XMLName            xml.Name `xml:"drift"`
	Xmlns              string   `xml:"xmlns,attr"`
	Digest             string   `xml:"digest"`
	ObservedGeneration int64    `xml:"observedGeneration"`
}

// Digest returns the sha256 hex digest of a domain XML document, used as
// the VirtualMachine status's DriftDigest field.
func Digest(domainXML string) string {
	sum := sha256.Sum256([]byte(domainXML))
	return hex.EncodeToString(sum[:])
}

// Store stamps domain with the digest of the XML that was just applied and
// the generation it corresponds to.
func Store(_ context.Context, l LibvirtClient, domain libvirt.Domain, domainXML string, observedGeneration int64) error {
	s := stamp{Xmlns: Namespace, Digest: Digest(domainXML), ObservedGeneration: observedGeneration}

	xmlData, err := xml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal drift stamp: %w", err)
	}

	err = l.DomainSetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{string(xmlData)},
		libvirt.OptString{Key},
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return fmt.Errorf("failed to set libvirt domain metadata: %w", err)
	}

	return nil
}

// Load retrieves the last-stamped digest and observed generation for
// domain. Returns ("", 0, nil) if no stamp has ever been written.
func Load(_ context.Context, l LibvirtClient, domain libvirt.Domain) (digest string, observedGeneration int64, err error) {
	xmlStr, err := l.DomainGetMetadata(
		domain,
		int32(libvirt.DomainMetadataElement),
		libvirt.OptString{Namespace},
		libvirt.DomainModificationImpact(0),
	)
	if err != nil {
		return "", 0, nil
	}

	var s stamp
	if err := xml.Unmarshal([]byte(xmlStr), &s); err != nil {
		return "", 0, fmt.Errorf("failed to unmarshal drift stamp: %w", err)
	}

	return s.Digest, s.ObservedGeneration, nil
}

// Matches reports whether domain's stamped digest still matches domainXML,
// i.e. nothing has redefined the domain out from under the control plane
// since the last reconcile.
func Matches(ctx context.Context, l LibvirtClient, domain libvirt.Domain, domainXML string) (bool, error) {
	stamped, _, err := Load(ctx, l, domain)
	if err != nil {
		return false, err
	}
	return stamped == Digest(domainXML), nil
}

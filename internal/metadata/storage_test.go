package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/digitalocean/go-libvirt"
)

type mockLibvirtClient struct {
	setMetadataError error
	getMetadataError error
	getMetadataValue string

	lastSetMetadata  string
	lastSetKey       string
	lastSetURI       string
	lastSetFlags     libvirt.DomainModificationImpact
	setMetadataCalls int
	getMetadataCalls int
}

func (m *mockLibvirtClient) DomainSetMetadata(
	dom libvirt.Domain,
	typ int32,
	metadata libvirt.OptString,
	key libvirt.OptString,
	uri libvirt.OptString,
	flags libvirt.DomainModificationImpact,
) error {
	m.setMetadataCalls++
	if len(metadata) > 0 {
		m.lastSetMetadata = metadata[0]
	}
	if len(key) > 0 {
		m.lastSetKey = key[0]
	}
	if len(uri) > 0 {
		m.lastSetURI = uri[0]
	}
	m.lastSetFlags = flags

	return m.setMetadataError
}

func (m *mockLibvirtClient) DomainGetMetadata(
	dom libvirt.Domain,
	typ int32,
	uri libvirt.OptString,
	flags libvirt.DomainModificationImpact,
) (string, error) {
	m.getMetadataCalls++
	if m.getMetadataError != nil {
		return "", m.getMetadataError
	}
	return m.getMetadataValue, nil
}

func TestStoreThenLoadRoundTrip(t *testing.T) {
	mock := &mockLibvirtClient{}
	domain := libvirt.Domain{}
	ctx := context.Background()

	domainXML := "<domain><name>test-vm</name></domain>"
	if err := Store(ctx, mock, domain, domainXML, 3); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if mock.setMetadataCalls != 1 {
		t.Errorf("setMetadataCalls = %d, want 1", mock.setMetadataCalls)
	}
	if mock.lastSetKey != Key {
		t.Errorf("key = %q, want %q", mock.lastSetKey, Key)
	}
	if mock.lastSetURI != Namespace {
		t.Errorf("uri = %q, want %q", mock.lastSetURI, Namespace)
	}

	mock.getMetadataValue = mock.lastSetMetadata
	digest, gen, err := Load(ctx, mock, domain)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if digest != Digest(domainXML) {
		t.Errorf("digest = %q, want %q", digest, Digest(domainXML))
	}
	if gen != 3 {
		t.Errorf("observedGeneration = %d, want 3", gen)
	}
}

func TestDigestIsStableForSameInput(t *testing.T) {
	xml := "<domain><name>a</name></domain>"
	if Digest(xml) != Digest(xml) {
		t.Error("Digest() is not stable across calls with identical input")
	}
	if Digest(xml) == Digest(xml+" ") {
		t.Error("Digest() did not change for different input")
	}
}

func TestLoadWithNoStampReturnsEmpty(t *testing.T) {
	mock := &mockLibvirtClient{getMetadataError: errors.New("no metadata set")}
	digest, gen, err := Load(context.Background(), mock, libvirt.Domain{})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil (missing stamp is not an error)", err)
	}
	if digest != "" || gen != 0 {
		t.Errorf("digest=%q gen=%d, want empty/zero", digest, gen)
	}
}

func TestMatchesDetectsDrift(t *testing.T) {
	mock := &mockLibvirtClient{}
	domain := libvirt.Domain{}
	ctx := context.Background()
	domainXML := "<domain><name>test-vm</name></domain>"

	if err := Store(ctx, mock, domain, domainXML, 1); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	mock.getMetadataValue = mock.lastSetMetadata

	ok, err := Matches(ctx, mock, domain, domainXML)
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if !ok {
		t.Error("Matches() = false, want true for unchanged XML")
	}

	ok, err = Matches(ctx, mock, domain, domainXML+"<!-- edited out of band -->")
	if err != nil {
		t.Fatalf("Matches() error = %v", err)
	}
	if ok {
		t.Error("Matches() = true, want false after out-of-band edit")
	}
}

func TestStorePropagatesSetMetadataError(t *testing.T) {
	mock := &mockLibvirtClient{setMetadataError: errors.New("libvirt error")}
	err := Store(context.Background(), mock, libvirt.Domain{}, "<domain/>", 1)
	if err == nil {
		t.Fatal("Store() error = nil, want error")
	}
}

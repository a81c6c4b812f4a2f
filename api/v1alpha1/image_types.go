package v1alpha1

// Arch is a supported guest CPU architecture.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchAArch64 Arch = "aarch64"
)

// Image is an immutable base OS image. Presence on a given host is a
// boolean predicate tracked in Status.HostPaths, not a property of the
// Image itself.
type Image struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   ImageSpec   `json:"spec" yaml:"spec"`
	Status ImageStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// ImageSpec defines an immutable base image.
type ImageSpec struct {
	Arch   Arch   `json:"arch" yaml:"arch"`
	SHA256 string `json:"sha256" yaml:"sha256"`
}

// ImageStatus defines per-host presence of an Image.
type ImageStatus struct {
	// HostPaths maps host id to the local path of the image on that host.
	// Absence of a key means the image is not yet present on that host.
	// +optional
	HostPaths map[string]string `json:"hostPaths,omitempty" yaml:"hostPaths,omitempty"`
}

// DeepCopy creates a deep copy of Image.
func (in *Image) DeepCopy() *Image {
	if in == nil {
		return nil
	}
	out := new(Image)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of ImageStatus.
func (in *ImageStatus) DeepCopy() *ImageStatus {
	if in == nil {
		return nil
	}
	out := new(ImageStatus)
	if in.HostPaths != nil {
		out.HostPaths = make(map[string]string, len(in.HostPaths))
		for k, v := range in.HostPaths {
			out.HostPaths[k] = v
		}
	}
	return out
}

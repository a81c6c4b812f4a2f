package v1alpha1

// MigrationPhase is the current step of a live-migration state machine.
type MigrationPhase string

const (
	MigrationPhasePrepare    MigrationPhase = "prepare"
	MigrationPhasePrecopy    MigrationPhase = "precopy"
	MigrationPhaseSwitchover MigrationPhase = "switchover"
	MigrationPhaseFinalize   MigrationPhase = "finalize"
	MigrationPhaseAbort      MigrationPhase = "abort"
)

// Migration drives a single VM's move between a source and destination
// Host. Only one live migration per VM may exist at a time.
type Migration struct {
	TypeMeta   `json:",inline" yaml:",inline"`
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec   MigrationSpec   `json:"spec" yaml:"spec"`
	Status MigrationStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// MigrationSpec defines the desired parameters of a live migration.
type MigrationSpec struct {
	VMID             string `json:"vmID" yaml:"vmID"`
	SourceHostID     string `json:"sourceHostID" yaml:"sourceHostID"`
	DestinationHostID string `json:"destinationHostID" yaml:"destinationHostID"`

	// BandwidthCapBytesPerSec caps migration traffic; 0 means unlimited.
	// +optional
	BandwidthCapBytesPerSec int64 `json:"bandwidthCapBytesPerSec,omitempty" yaml:"bandwidthCapBytesPerSec,omitempty"`
	// +optional
	MaxDowntimeMS int `json:"maxDowntimeMS,omitempty" yaml:"maxDowntimeMS,omitempty"`
	// +optional
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// MigrationStatus defines the observed progress of a live migration.
type MigrationStatus struct {
	Phase      MigrationPhase `json:"phase,omitempty" yaml:"phase,omitempty"`
	ProgressPct int           `json:"progressPct,omitempty" yaml:"progressPct,omitempty"`

	// +optional
	StartTime Time `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	// +optional
	EndTime Time `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	// +optional
	FailureReason string `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
}

// DeepCopy creates a deep copy of Migration.
func (in *Migration) DeepCopy() *Migration {
	if in == nil {
		return nil
	}
	out := new(Migration)
	out.TypeMeta = *in.TypeMeta.DeepCopy()
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = in.Spec
	out.Status = in.Status
	return out
}

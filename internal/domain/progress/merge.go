package progress

// MergeSource tells which side won a reconciliation.
type MergeSource string

const (
	SourceLocal  MergeSource = "local"
	SourceRemote MergeSource = "remote"
	SourceNone   MergeSource = "none"
)

// Merge reconciles a local and a remote snapshot with last-writer-wins
// semantics: the snapshot with the greater UpdatedAt wins whole, field by
// field merging is never attempted. A nil side loses automatically. On an
// exact timestamp tie the local copy wins, so a just-written autosave is
// never clobbered by a stale remote echo of itself.
func Merge(local, remote *Snapshot) (*Snapshot, MergeSource) {
	switch {
	case local == nil && remote == nil:
		return nil, SourceNone
	case local == nil:
		return remote, SourceRemote
	case remote == nil:
		return local, SourceLocal
	}
	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote, SourceRemote
	}
	return local, SourceLocal
}

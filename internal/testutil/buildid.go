package testutil

// FixedBuildID returns the same build ID for every build, so reports of
// repeated runs compare equal in golden files.
//
// Thread-safety: FixedBuildID is stateless and safe for concurrent use.
type FixedBuildID string

// Generate returns the fixed ID, or "test-build" if it is empty.
func (id FixedBuildID) Generate() string {
	if id == "" {
		return "test-build"
	}
	return string(id)
}

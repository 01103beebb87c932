package types

// AppRecord describes one launchable application visible to the guest.
// Records are derived on demand from the host catalog and never cached,
// so there is no staleness to manage.
type AppRecord struct {
	Name             string   `json:"name"`
	PackageName      string   `json:"package_name"`
	PrimaryAction    string   `json:"action"`
	PrimaryDataURI   string   `json:"data_uri"` // empty, never null, when absent
	ComponentPackage string   `json:"component_package"`
	ComponentClass   string   `json:"component_class"`
	Categories       []string `json:"categories"`
}

// Install submission status codes. These reflect "session submitted",
// not final install outcome, which arrives asynchronously on the receipt.
const (
	StatusSubmitted = 0
	StatusFailed    = -1
)

// ErrUndefined is the sentinel returned for integer settings reads that
// resolve no value. Kept for wire compatibility with existing guests.
const ErrUndefined = -1

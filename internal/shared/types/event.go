package types

// EventKind identifies a package lifecycle transition emitted by the host.
type EventKind string

const (
	PackageAdded   EventKind = "added"
	PackageRemoved EventKind = "removed"
	PackageUpdated EventKind = "updated"
)

// Valid reports whether the kind is one the relay understands.
func (k EventKind) Valid() bool {
	switch k {
	case PackageAdded, PackageRemoved, PackageUpdated:
		return true
	}
	return false
}

// Code returns the numeric state-change code used on the monitor wire.
func (k EventKind) Code() int {
	switch k {
	case PackageAdded:
		return 0
	case PackageRemoved:
		return 1
	case PackageUpdated:
		return 2
	}
	return ErrUndefined
}

// PackageEvent is one normalized lifecycle event flowing through the relay.
type PackageEvent struct {
	Kind        EventKind `json:"kind"`
	PackageName string    `json:"package_name"`
	UID         int       `json:"uid"`
}

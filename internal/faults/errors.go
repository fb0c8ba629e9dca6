package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNetwork             = errors.New("network error")
	ErrFilesystem          = errors.New("filesystem error")
	ErrArchive             = errors.New("archive error")
	ErrProcessSpawn        = errors.New("process spawn error")
	ErrProcessExit         = errors.New("process exit error")
	ErrServiceUnreachable  = errors.New("service unreachable")
	ErrConfiguration       = errors.New("configuration error")
)

var markers = []struct {
	err  error
	kind string
	hint string
}{
	{ErrUnsupportedPlatform, "unsupported_platform", "run on windows, macOS or linux, or set service.downloads for this platform"},
	{ErrNetwork, "network", "check the network connection and the configured download URLs"},
	{ErrFilesystem, "filesystem", "check permissions and free space in the application home"},
	{ErrArchive, "archive", "remove the downloaded archive so it is fetched again"},
	{ErrProcessSpawn, "process_spawn", "verify the executable exists and is executable"},
	{ErrProcessExit, "process_exit", "inspect the service log in the application home"},
	{ErrServiceUnreachable, "service_unreachable", "check that the service port is free and the service starts"},
	{ErrConfiguration, "configuration", "fix the launcher or service configuration file"},
}

// Wrap builds an error message that includes resource and operation context while
// tagging it with marker for later classification.
func Wrap(marker error, resource, operation, message string, err error) error {
	detail := buildDetail(resource, operation, message)
	if marker == nil {
		marker = ErrFilesystem
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ResourceError tags an error with the id of the resource being provisioned.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Tag attaches resource to err. It returns nil for a nil err and never double-tags.
func Tag(resource string, err error) error {
	if err == nil {
		return nil
	}
	var existing *ResourceError
	if errors.As(err, &existing) && existing.Resource == resource {
		return err
	}
	return &ResourceError{Resource: resource, Err: err}
}

// EntryError reports a failure on a single archive entry.
type EntryError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *EntryError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("%v: %s: %v", ErrArchive, e.Archive, e.Err)
	}
	return fmt.Sprintf("%v: %s: entry %q: %v", ErrArchive, e.Archive, e.Entry, e.Err)
}

func (e *EntryError) Unwrap() []error { return []error{ErrArchive, e.Err} }

// Details is a classified, display-ready view of an error.
type Details struct {
	Kind     string
	Hint     string
	Resource string
	Entry    string
	Message  string
}

// Describe classifies err. Unknown errors get kind "unknown".
func Describe(err error) Details {
	if err == nil {
		return Details{}
	}
	d := Details{Kind: "unknown", Message: err.Error()}
	for _, m := range markers {
		if errors.Is(err, m.err) {
			d.Kind = m.kind
			d.Hint = m.hint
			break
		}
	}
	var res *ResourceError
	if errors.As(err, &res) {
		d.Resource = res.Resource
	}
	var entry *EntryError
	if errors.As(err, &entry) {
		d.Entry = entry.Entry
	}
	return d
}

// Summary is the short line shown for a fatal error.
func (d Details) Summary() string {
	label := strings.ReplaceAll(d.Kind, "_", " ")
	if d.Resource != "" {
		return fmt.Sprintf("Failed to prepare %s (%s)", d.Resource, label)
	}
	return fmt.Sprintf("Startup failed (%s)", label)
}

func buildDetail(resource, operation, message string) string {
	parts := make([]string, 0, 3)
	if resource = strings.TrimSpace(resource); resource != "" {
		parts = append(parts, resource)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "launcher failure"
	}
	return strings.Join(parts, ": ")
}

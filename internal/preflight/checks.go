package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"tessera/internal/config"
	"tessera/internal/service"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := checkAccess(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBundle reports whether a data bundle is installed.
func CheckBundle(cfg *config.Config, b config.Bundle) Result {
	name := "Data: " + b.ID
	path := cfg.BundleCheckPath(b)
	if _, err := os.Stat(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (not installed)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckPort reports whether the service port is free. A busy port passes when
// a launcher is known to be running.
func CheckPort(port string, running bool) Result {
	name := "Service port"
	if err := config.ValidatePort(port); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", port, err)}
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		if running {
			return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (in use by running launcher)", port)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (in use by another process)", port)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (free)", port)}
}

// CheckService probes the service once with a short timeout.
func CheckService(ctx context.Context, prober service.Prober, port string) Result {
	const name = "Service reachable"
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := prober.Probe(checkCtx, port); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{Name: name, Detail: "not running (probe timed out)"}
		}
		return Result{Name: name, Detail: fmt.Sprintf("not running (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "responding on port " + port}
}

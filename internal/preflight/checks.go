package preflight

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
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
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckVideoNodes verifies that at least one video* node under dir can be
// opened for capture by this user.
func CheckVideoNodes(dir string) Result {
	const name = "Video devices"

	nodes, err := filepath.Glob(filepath.Join(dir, "video*"))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("glob %s: %v", dir, err)}
	}
	if len(nodes) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no video nodes in %s", dir)}
	}
	sort.Strings(nodes)

	var usable, denied []string
	for _, node := range nodes {
		if err := unix.Access(node, unix.R_OK|unix.W_OK); err != nil {
			denied = append(denied, filepath.Base(node))
			continue
		}
		usable = append(usable, filepath.Base(node))
	}
	if len(usable) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("no accessible nodes (denied: %s; is this user in the video group?)", strings.Join(denied, ", "))}
	}
	detail := fmt.Sprintf("%d accessible (%s)", len(usable), strings.Join(usable, ", "))
	if len(denied) > 0 {
		detail += fmt.Sprintf(", %d denied", len(denied))
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckAPIBind verifies that the bind address is host:port with a usable port.
func CheckAPIBind(bind string) Result {
	const name = "API bind"

	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: %v)", bind, err)}
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: invalid port)", bind)}
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return Result{Name: name, Detail: fmt.Sprintf("%q (error: host is not an IP address)", bind)}
	}
	return Result{Name: name, Passed: true, Detail: bind}
}

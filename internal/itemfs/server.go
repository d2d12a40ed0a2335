package itemfs

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server serves a billy filesystem over NFSv3 on a local TCP port.
type Server struct {
	listener net.Listener
	port     int
}

// Serve starts an NFS server for fsys on addr. Pass ":0" to pick an
// ephemeral port.
func Serve(fsys billy.Filesystem, addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}

	handler := nfshelper.NewNullAuthHandler(fsys)
	cached := nfshelper.NewCachingHandler(handler, 1024)

	go func() {
		_ = nfs.Serve(listener, cached)
	}()

	return &Server{
		listener: listener,
		port:     listener.Addr().(*net.TCPAddr).Port,
	}, nil
}

// Port returns the TCP port the server is listening on.
func (s *Server) Port() int { return s.port }

// Close stops the server.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Mount mounts the served filesystem at mountpoint using the system
// mount command. Linux and macOS only; both paths go through sudo.
func Mount(port int, mountpoint string) error {
	var opts string
	switch runtime.GOOS {
	case "darwin":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,locallocks,noresvport,rdonly", port, port)
	case "linux":
		opts = fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp,nolock,ro", port, port)
	default:
		return fmt.Errorf("unsupported OS for mounting: %s", runtime.GOOS)
	}

	cmd := exec.Command("sudo", "mount", "-t", "nfs", "-o", opts, "localhost:/", mountpoint)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, string(output))
	}
	return nil
}

// Unmount removes a mount created by Mount.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	output, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput()
	if err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, string(output))
	}
	return nil
}

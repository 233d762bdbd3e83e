package ethfork

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// LaunchSpec is what a launcher needs to start anvil.
type LaunchSpec struct {
	UpstreamURL string
	BlockNumber uint64
	Mining      Mining
}

// AnvilArgs renders the spec as anvil command line flags, without host or
// port.
func (s LaunchSpec) AnvilArgs() []string {
	args := []string{"--fork-url", s.UpstreamURL}
	if s.BlockNumber > 0 {
		args = append(args, "--fork-block-number", strconv.FormatUint(s.BlockNumber, 10))
	}
	switch s.Mining.Mode {
	case Manual:
		args = append(args, "--no-mining")
	case Interval:
		args = append(args, "--block-time", strconv.FormatUint(s.Mining.blockSeconds(), 10))
	}
	return append(args, "--silent")
}

type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Instance, error)
}

// Instance is a running fork node.
type Instance interface {
	Endpoint() string
	Stop(ctx context.Context) error
}

// ProcessLauncher runs a local anvil binary.
type ProcessLauncher struct {
	// AnvilPath defaults to "anvil" on PATH.
	AnvilPath string

	// Output receives anvil's stdout and stderr. Nil discards them.
	Output io.Writer
}

func (l ProcessLauncher) Launch(ctx context.Context, spec LaunchSpec) (Instance, error) {
	path := l.AnvilPath
	if path == "" {
		path = "anvil"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, fmt.Errorf("anvil binary not found: %w", err)
	}

	port, err := freePort()
	if err != nil {
		return nil, err
	}

	args := append(spec.AnvilArgs(), "--host", "127.0.0.1", "--port", strconv.Itoa(port))
	cmd := exec.Command(path, args...)
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start anvil: %w", err)
	}

	p := &process{cmd: cmd, endpoint: fmt.Sprintf("http://127.0.0.1:%d", port), done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type process struct {
	cmd      *exec.Cmd
	endpoint string
	done     chan struct{}
	waitErr  error
	stopOnce sync.Once
}

func (p *process) Endpoint() string {
	return p.endpoint
}

func (p *process) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		if killErr := p.cmd.Process.Kill(); killErr != nil {
			err = killErr
			return
		}
		select {
		case <-p.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("pick port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

const (
	DefaultFoundryImage = "ghcr.io/foundry-rs/foundry:latest"
	anvilPort           = "8545/tcp"
)

// ContainerLauncher runs anvil from the foundry image with testcontainers.
type ContainerLauncher struct {
	// Image defaults to DefaultFoundryImage.
	Image string

	StartupTimeout time.Duration
}

func (l ContainerLauncher) Launch(ctx context.Context, spec LaunchSpec) (Instance, error) {
	image := l.Image
	if image == "" {
		image = DefaultFoundryImage
	}
	timeout := l.StartupTimeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	req := testcontainers.ContainerRequest{
		Image:        image,
		Entrypoint:   []string{"anvil"},
		Cmd:          append(spec.AnvilArgs(), "--host", "0.0.0.0", "--port", "8545"),
		ExposedPorts: []string{anvilPort},
		WaitingFor:   wait.ForListeningPort(anvilPort).WithStartupTimeout(timeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if container != nil {
			_ = container.Terminate(context.Background())
		}
		return nil, fmt.Errorf("start anvil container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("anvil container host: %w", err)
	}
	port, err := container.MappedPort(ctx, anvilPort)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("anvil container port: %w", err)
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())
	return &containerInstance{container: container, endpoint: endpoint}, nil
}

type containerInstance struct {
	container testcontainers.Container
	endpoint  string
}

func (c *containerInstance) Endpoint() string {
	return c.endpoint
}

func (c *containerInstance) Stop(ctx context.Context) error {
	if err := c.container.Terminate(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

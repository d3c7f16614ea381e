package childproc

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/antigravity-dev/jido/internal/directive"
)

// ContainerLauncher runs a directive.ChildSpec with Kind == "container" as
// a Docker container instead of a native process, using spec.Image.
// Grounded on the teacher's DockerDispatcher, generalized from
// launching a fixed "chum-agent:latest" openclaw image to launching
// whatever image the child spec names.
type ContainerLauncher struct {
	cli *client.Client

	mu      sync.Mutex
	handles map[int]string // handle -> container ID
	nextID  int
}

// NewContainerLauncher connects to the local Docker daemon using the
// standard environment-derived configuration. A nil *client.Client is
// tolerated (Spawn then fails with a clear error) so an instance without
// Docker available doesn't fail to start.
func NewContainerLauncher() *ContainerLauncher {
	cli, _ := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	return &ContainerLauncher{cli: cli, handles: make(map[int]string)}
}

// Spawn starts a container running spec.Command/spec.Args in spec.Image
// and returns an opaque integer handle (not an OS PID — container
// identity is the Docker container ID underneath).
func (l *ContainerLauncher) Spawn(ctx context.Context, spec directive.ChildSpec) (handle int, err error) {
	if l.cli == nil {
		return 0, fmt.Errorf("childproc: container: no docker client available")
	}
	if spec.Image == "" {
		return 0, fmt.Errorf("childproc: container: image is required")
	}

	cmd := append([]string{spec.Command}, spec.Args...)
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Cmd:        cmd,
		Env:        env,
		WorkingDir: spec.WorkDir,
		Tty:        false,
	}

	created, err := l.cli.ContainerCreate(ctx, cfg, nil, nil, nil, "")
	if err != nil {
		return 0, fmt.Errorf("childproc: container create: %w", err)
	}
	if err := l.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("childproc: container start: %w", err)
	}

	l.mu.Lock()
	l.nextID++
	handle = l.nextID
	l.handles[handle] = created.ID
	l.mu.Unlock()

	return handle, nil
}

// Wait blocks until the container identified by handle exits and returns
// its exit code.
func (l *ContainerLauncher) Wait(ctx context.Context, handle int) (int, error) {
	id, ok := l.containerID(handle)
	if !ok {
		return -1, fmt.Errorf("childproc: container: unknown handle %d", handle)
	}
	statusCh, errCh := l.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, fmt.Errorf("childproc: container wait: %w", err)
	case status := <-statusCh:
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Logs returns the combined stdout/stderr of the container as a single
// stream, demultiplexed via stdcopy.
func (l *ContainerLauncher) Logs(ctx context.Context, handle int) ([]byte, error) {
	id, ok := l.containerID(handle)
	if !ok {
		return nil, fmt.Errorf("childproc: container: unknown handle %d", handle)
	}
	rc, err := l.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("childproc: container logs: %w", err)
	}
	defer rc.Close()

	var stdout, stderr bufferWriter
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("childproc: demux container logs: %w", err)
	}
	return append(stdout.buf, stderr.buf...), nil
}

// Kill stops the container identified by handle with a grace period.
func (l *ContainerLauncher) Kill(ctx context.Context, handle int) error {
	id, ok := l.containerID(handle)
	if !ok {
		return nil
	}
	timeout := 5
	return l.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
}

func (l *ContainerLauncher) containerID(handle int) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.handles[handle]
	return id, ok
}

type bufferWriter struct{ buf []byte }

func (w *bufferWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

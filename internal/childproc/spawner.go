package childproc

import (
	"context"
	"fmt"

	"github.com/antigravity-dev/jido/internal/directive"
)

// Spawner is the Spawn{child_spec} directive executor (spec.md §4.5):
// it routes a directive.ChildSpec to the native Launcher, or to the
// opt-in ContainerLauncher when Kind == "container".
type Spawner struct {
	Launcher  *Launcher
	Container *ContainerLauncher
}

// NewSpawner returns a Spawner with a native Launcher always available;
// the container path is only exercised when container is non-nil.
func NewSpawner(container *ContainerLauncher) *Spawner {
	return &Spawner{Launcher: NewLauncher(), Container: container}
}

// Spawn launches spec and returns an opaque handle (PID for native
// processes, container launcher handle for containers).
func (s *Spawner) Spawn(ctx context.Context, spec directive.ChildSpec) (int, error) {
	switch spec.Kind {
	case "", "process":
		return s.Launcher.Spawn(ctx, spec)
	case "container":
		if s.Container == nil {
			return 0, fmt.Errorf("childproc: spawn: container launching not configured")
		}
		return s.Container.Spawn(ctx, spec)
	default:
		return 0, fmt.Errorf("childproc: spawn: unknown child_spec kind %q", spec.Kind)
	}
}

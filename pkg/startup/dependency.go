package startup

import "context"

type funcDependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

// NewDependency wraps start/stop funcs as a StartupDependency. Either func
// may be nil.
func NewDependency(name string, dependsOn []string, start, stop func(ctx context.Context) error) StartupDependency {
	return &funcDependency{
		name:      name,
		dependsOn: dependsOn,
		start:     start,
		stop:      stop,
	}
}

func (d *funcDependency) GetName() string {
	return d.name
}

func (d *funcDependency) DependsOn() []string {
	return d.dependsOn
}

func (d *funcDependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}

func (d *funcDependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

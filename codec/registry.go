package codec

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MissingDependencyError is returned when an operation requires a codec
// service and none is available on this host.
type MissingDependencyError struct {
	Feature string
	Hint    string
}

func (e MissingDependencyError) Error() string {
	msg := "no codec service available for " + e.Feature
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}

	return msg
}

// ServiceFactory creates a Service, or fails when the backing tool is
// not usable on this host. Factories are called at most once; the
// outcome is memoized.
type ServiceFactory func() (Service, error)

var (
	registryMu sync.Mutex
	factories  = make(map[string]ServiceFactory)
	order      []string
	resolved   = make(map[string]resolution)
)

type resolution struct {
	service Service
	err     error
}

// RegisterService makes a service factory available under a name.
// Registration order determines Default() preference. Registering the
// same name twice replaces the factory and forgets the memoized outcome.
func RegisterService(name string, factory ServiceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := factories[name]; !ok {
		order = append(order, name)
	}

	factories[name] = factory
	delete(resolved, name)
}

// Available resolves a registered service by name. The factory runs on
// first call only; subsequent calls return the memoized result.
func Available(name string) (Service, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	return available(name)
}

func available(name string) (Service, error) {
	if r, ok := resolved[name]; ok {
		return r.service, r.err
	}

	factory, ok := factories[name]
	if !ok {
		return nil, errors.Errorf("unknown codec service %q", name)
	}

	service, err := factory()
	resolved[name] = resolution{service: service, err: err}
	if err != nil {
		logrus.WithField("service", name).Warnf("codec service unavailable: %s", err)
	}

	return service, err
}

// Default returns the first registered service which resolves without
// error, or MissingDependencyError if none does.
func Default() (Service, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	for _, name := range order {
		if service, err := available(name); err == nil {
			return service, nil
		}
	}

	return nil, MissingDependencyError{
		Feature: "audio/video processing",
		Hint:    "install ffmpeg and ffprobe",
	}
}

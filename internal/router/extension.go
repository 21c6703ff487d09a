package router

import "context"

// ExtensionSet is the explicit registry of capability providers owned
// by one router instance. No ambient global state: providers are
// registered on the value before Start and queried only by the engine
// that owns it.
type ExtensionSet struct {
	exts []Extension
}

// Register appends a provider. Must be called before the router starts.
func (s *ExtensionSet) Register(ext Extension) {
	s.exts = append(s.exts, ext)
}

// Names returns the registered provider names, in registration order.
func (s *ExtensionSet) Names() []string {
	names := make([]string, len(s.exts))
	for i, e := range s.exts {
		names[i] = e.Name()
	}
	return names
}

func (s *ExtensionSet) start(ctx context.Context) error {
	for _, e := range s.exts {
		if err := e.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *ExtensionSet) stop(ctx context.Context) {
	for _, e := range s.exts {
		_ = e.Stop(ctx)
	}
}

func (s *ExtensionSet) each(fn func(Extension)) {
	for _, e := range s.exts {
		fn(e)
	}
}

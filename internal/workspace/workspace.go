// Package workspace assembles the overlay resolver, the enabled resource
// caches and one change notifier per cache into a running service.
//
// The service also watches the mod's descriptor.mod. When the descriptor
// changes, the resolver reloads it and every cache resyncs against the new
// effective file set.
//
// Mod directories that do not exist yet, including the mod root itself, are
// followed through their nearest existing ancestor. Once one appears it is
// watched and every cache resyncs.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/modlens/internal/log"
	"github.com/albertocavalcante/modlens/internal/overlay"
	"github.com/albertocavalcante/modlens/internal/rescache"
	"github.com/albertocavalcante/modlens/internal/resources"
	"github.com/albertocavalcante/modlens/internal/watch"
	"github.com/albertocavalcante/modlens/pkg/config"
	"github.com/albertocavalcante/modlens/pkg/registry"
)

// Status summarizes one loaded cache.
type Status struct {
	Kind    string `json:"kind"`
	Root    string `json:"root"`
	Entries int    `json:"entries"`
}

// ChangeFunc observes changes across all caches.
type ChangeFunc func(kind, path string)

// Service owns the caches of one base/mod pair.
type Service struct {
	cfg      *config.Config
	resolver *overlay.Resolver
	log      *zap.SugaredLogger

	resources  []resources.Resource
	notifiers  []*watch.Notifier
	descriptor *watch.Notifier // nil without a configured mod root
	tree       *watch.Notifier // nil when every mod directory exists

	resyncMu sync.Mutex

	treeMu  sync.Mutex
	waiting []waiter
	armed   map[string]bool

	mu        sync.Mutex
	observers map[int]ChangeFunc
	nextObs   int
	unsubs    []func()
}

// Open loads every enabled cache and attaches notifiers. Notifiers do not
// deliver until Run is called.
func Open(ctx context.Context, cfg *config.Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	resolver, err := overlay.NewResolver(cfg.Game.Root, cfg.Mod.Root, cfg.Watch.Ignore...)
	if err != nil {
		return nil, err
	}

	opts := resources.Options{Ignore: cfg.Watch.Ignore}
	if !cfg.ParallelLoad() {
		opts.Load = rescache.LoadSequential
	}
	res, err := registry.LoadResources(ctx, cfg, resolver, opts)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		resolver:  resolver,
		log:       log.Component("workspace"),
		resources: res,
		observers: make(map[int]ChangeFunc),
		armed:     make(map[string]bool),
	}
	if err := s.attach(); err != nil {
		_ = s.Close()
		return nil, err
	}
	for _, r := range res {
		s.unsubs = append(s.unsubs, r.Subscribe(func(path string) { s.fire(r.Kind(), path) }))
	}

	s.log.Infow("workspace loaded",
		"game", resolver.BaseRoot(),
		"mod", resolver.ModRoot(),
		"resources", len(res))
	return s, nil
}

func (s *Service) newNotifier(name string, dirs bool) (*watch.Notifier, error) {
	n, err := watch.New(watch.Config{
		Interval:   s.cfg.WatchInterval(),
		MaxPending: s.cfg.Watch.MaxPending,
		Ignore:     s.cfg.Watch.Ignore,
		Name:       name,
		Dirs:       dirs,
	})
	if err != nil {
		return nil, err
	}
	n.SetEnabled(s.cfg.WatchEnabled())
	return n, nil
}

func (s *Service) attach() error {
	for _, r := range s.resources {
		n, err := s.newNotifier(r.Kind(), false)
		if err != nil {
			return err
		}
		s.notifiers = append(s.notifiers, n)
		if err := r.Attach(n); err != nil {
			return err
		}
		if dir := r.ModDir(); dir != "" && !isDir(dir) {
			s.waiting = append(s.waiting, waiter{dir: dir, attach: func() error {
				_, err := r.AttachMod()
				return err
			}})
		}
	}

	modRoot := s.resolver.ModRoot()
	if modRoot == "" {
		return nil
	}
	n, err := s.newNotifier("descriptor", false)
	if err != nil {
		return err
	}
	s.descriptor = n
	n.Subscribe(watch.HandlerFunc(s.onDescriptorEvent))
	watchDescriptor := func() error {
		if err := n.Watch(modRoot, overlay.DescriptorFile, false); err != nil {
			return fmt.Errorf("watch descriptor: %w", err)
		}
		return nil
	}
	if isDir(modRoot) {
		if err := watchDescriptor(); err != nil {
			return err
		}
	} else {
		s.waiting = append(s.waiting, waiter{dir: modRoot, attach: watchDescriptor})
	}

	if len(s.waiting) == 0 {
		return nil
	}
	if s.tree, err = s.newNotifier("mod-tree", true); err != nil {
		return err
	}
	s.tree.Subscribe(watch.HandlerFunc(s.onTreeEvent))
	attached, err := s.catchUp()
	if err != nil {
		return err
	}
	if attached {
		return s.resync("mod directory appeared")
	}
	return nil
}

func (s *Service) onDescriptorEvent(ev watch.Event) {
	if ev.Kind != watch.Overflow && !strings.EqualFold(ev.Name(), overlay.DescriptorFile) {
		return
	}
	s.log.Debugw("descriptor event", "kind", ev.Kind, "path", ev.Path)
	if _, err := s.ReloadDescriptor(); err != nil {
		s.log.Warnw("descriptor reload failed", "error", err)
	}
}

// ReloadDescriptor re-reads descriptor.mod and, if it changed, resyncs
// every cache. It reports whether the descriptor changed.
func (s *Service) ReloadDescriptor() (bool, error) {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	changed, err := s.resolver.ReloadDescriptor()
	if err != nil || !changed {
		return false, err
	}
	s.log.Infow("descriptor changed, resyncing",
		"replaced", s.resolver.Descriptor().ReplacedPaths())
	return true, s.resyncLocked()
}

// resync reloads the descriptor and resyncs every cache unconditionally.
func (s *Service) resync(reason string) error {
	s.resyncMu.Lock()
	defer s.resyncMu.Unlock()

	s.log.Infow("resyncing", "reason", reason)
	var errs []error
	if _, err := s.resolver.ReloadDescriptor(); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, s.resyncLocked())
	return errors.Join(errs...)
}

func (s *Service) resyncLocked() error {
	var errs []error
	for _, r := range s.resources {
		cs, err := r.Resync()
		if err != nil {
			errs = append(errs, fmt.Errorf("resync %s: %w", r.Kind(), err))
			continue
		}
		if !cs.IsEmpty() {
			s.log.Infow("resynced", "kind", r.Kind(), "changes", cs.TotalChanges(),
				"added", len(cs.Added), "modified", len(cs.Modified), "deleted", len(cs.Deleted))
		}
	}
	return errors.Join(errs...)
}

// Resolver returns the overlay resolver.
func (s *Service) Resolver() *overlay.Resolver { return s.resolver }

// Resources returns the loaded caches in load order.
func (s *Service) Resources() []resources.Resource { return s.resources }

// Resource returns the cache of a kind.
func (s *Service) Resource(kind string) (resources.Resource, bool) {
	for _, r := range s.resources {
		if r.Kind() == kind {
			return r, true
		}
	}
	return nil, false
}

// StaticModifiers returns the static modifier cache if it is loaded.
func (s *Service) StaticModifiers() (*resources.StaticModifiers, bool) {
	r, ok := s.Resource(resources.StaticModifiersKind)
	if !ok {
		return nil, false
	}
	sm, ok := r.(*resources.StaticModifiers)
	return sm, ok
}

// Status returns entry counts per cache.
func (s *Service) Status() []Status {
	out := make([]Status, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, Status{Kind: r.Kind(), Root: r.Root(), Entries: r.Len()})
	}
	return out
}

// Subscribe registers fn for every change of every cache.
func (s *Service) Subscribe(fn ChangeFunc) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Service) fire(kind, path string) {
	s.mu.Lock()
	fns := make([]ChangeFunc, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(kind, path)
	}
}

// SetEnabled toggles delivery on every notifier.
func (s *Service) SetEnabled(enabled bool) {
	for _, n := range s.allNotifiers() {
		n.SetEnabled(enabled)
	}
}

func (s *Service) allNotifiers() []*watch.Notifier {
	out := append([]*watch.Notifier(nil), s.notifiers...)
	if s.descriptor != nil {
		out = append(out, s.descriptor)
	}
	if s.tree != nil {
		out = append(out, s.tree)
	}
	return out
}

// Run drives every notifier until ctx is cancelled or one fails. The
// notifiers are closed on return.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range s.allNotifiers() {
		g.Go(func() error { return n.Run(ctx) })
	}
	return g.Wait()
}

// Close releases watchers and cache subscriptions.
func (s *Service) Close() error {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	var errs []error
	for _, n := range s.allNotifiers() {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

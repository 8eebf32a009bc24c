package device

import (
	"encoding/hex"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/audiorouter/internal/errors"
	"github.com/tphakala/audiorouter/internal/logger"
)

// Kind selects capture or playback devices.
type Kind int

const (
	Capture Kind = iota
	Playback
)

func (k Kind) String() string {
	if k == Playback {
		return "playback"
	}
	return "capture"
}

func (k Kind) malgoType() malgo.DeviceType {
	if k == Playback {
		return malgo.Playback
	}
	return malgo.Capture
}

// Info describes one audio endpoint.
type Info struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	ID      string `json:"id"`
	Default bool   `json:"default"`
}

// EnumerateFunc lists devices of one kind on a backend.
type EnumerateFunc func(backend string, kind Kind) ([]Info, error)

// DefaultListTTL is how long enumeration results are reused.
const DefaultListTTL = 30 * time.Second

// Lister caches device enumeration. Opening a backend context is slow and
// must never happen on the audio path, so callers such as the HTTP API go
// through a Lister.
type Lister struct {
	backend   string
	cache     *cache.Cache
	enumerate EnumerateFunc
	log       logger.Logger
}

// ListerOption configures a Lister.
type ListerOption func(*Lister)

// WithEnumerator replaces the malgo enumerator.
func WithEnumerator(fn EnumerateFunc) ListerOption {
	return func(l *Lister) {
		if fn != nil {
			l.enumerate = fn
		}
	}
}

// NewLister returns a Lister for backend whose results live for ttl.
func NewLister(backend string, ttl time.Duration, opts ...ListerOption) *Lister {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	l := &Lister{
		backend:   backend,
		cache:     cache.New(ttl, 2*ttl),
		enumerate: EnumerateMalgo,
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Devices returns the devices of kind, from cache when fresh.
func (l *Lister) Devices(kind Kind) ([]Info, error) {
	key := l.backend + "/" + kind.String()
	if cached, ok := l.cache.Get(key); ok {
		if infos, ok := cached.([]Info); ok {
			return slices.Clone(infos), nil
		}
	}

	start := time.Now()
	infos, err := l.enumerate(l.backend, kind)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, infos, cache.DefaultExpiration)
	l.log.Debug("enumerated audio devices",
		logger.String("kind", kind.String()),
		logger.Int("count", len(infos)),
		logger.Duration("elapsed", time.Since(start)))
	return slices.Clone(infos), nil
}

// Invalidate drops cached results.
func (l *Lister) Invalidate() {
	l.cache.Flush()
}

// SelectDevice finds name among infos: the default device for "" or
// "default", then an exact name, a decoded ID, and finally a substring of
// the name.
func SelectDevice(infos []Info, name string) (Info, error) {
	if name == "" || name == "default" || name == "sysdefault" {
		for _, info := range infos {
			if info.Default {
				return info, nil
			}
		}
		if len(infos) > 0 {
			return infos[0], nil
		}
	}

	for _, info := range infos {
		if info.Name == name {
			return info, nil
		}
	}
	for _, info := range infos {
		if info.ID == name {
			return info, nil
		}
	}
	for _, info := range infos {
		if strings.Contains(info.Name, name) {
			return info, nil
		}
	}

	return Info{}, errors.New(fmt.Errorf("%w: %q", ErrDeviceNotFound, name)).
		Component(componentDevice).
		Category(errors.CategoryNotFound).
		Context("device_name", name).
		Context("available_devices", len(infos)).
		Build()
}

// ResolveBackend maps a backend name to a malgo backend. An empty name or
// "auto" picks the platform default.
func ResolveBackend(name string) (malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return platformBackend()
	case "alsa":
		return malgo.BackendAlsa, nil
	case "pulseaudio", "pulse":
		return malgo.BackendPulseaudio, nil
	case "jack":
		return malgo.BackendJack, nil
	case "wasapi":
		return malgo.BackendWasapi, nil
	case "coreaudio":
		return malgo.BackendCoreaudio, nil
	case "null":
		return malgo.BackendNull, nil
	default:
		return malgo.BackendNull, errors.Newf("unknown audio backend %q", name).
			Component(componentDevice).
			Category(errors.CategoryConfiguration).
			Context("backend", name).
			Build()
	}
}

func platformBackend() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("no audio backend for %s", runtime.GOOS).
			Component(componentDevice).
			Category(errors.CategoryAudioDevice).
			Context("os", runtime.GOOS).
			Build()
	}
}

// EnumerateMalgo lists devices through a temporary malgo context.
func EnumerateMalgo(backend string, kind Kind) ([]Info, error) {
	b, err := ResolveBackend(backend)
	if err != nil {
		return nil, err
	}

	mctx, err := malgo.InitContext([]malgo.Backend{b}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentDevice).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("backend", backend).
			Build()
	}
	defer func() { _ = mctx.Uninit() }()

	devices, err := mctx.Devices(kind.malgoType())
	if err != nil {
		return nil, errors.New(err).
			Component(componentDevice).
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Context("kind", kind.String()).
			Build()
	}
	return toInfos(devices), nil
}

func toInfos(devices []malgo.DeviceInfo) []Info {
	infos := make([]Info, 0, len(devices))
	for i := range devices {
		name := devices[i].Name()
		if strings.Contains(name, "Discard all samples") {
			continue
		}
		infos = append(infos, Info{
			Index:   i,
			Name:    name,
			ID:      decodeID(devices[i].ID.String()),
			Default: devices[i].IsDefault == 1,
		})
	}
	return infos
}

// decodeID turns malgo's hex device IDs into the readable form ALSA uses.
func decodeID(id string) string {
	decoded, err := hex.DecodeString(id)
	if err != nil {
		return id
	}
	return strings.TrimRight(string(decoded), "\x00")
}

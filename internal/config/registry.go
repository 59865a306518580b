package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/intervox/pkg/provider/llm"
	"github.com/MrWong99/intervox/pkg/provider/stt"
	"github.com/MrWong99/intervox/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned when a config entry names a provider
// no factory was registered for.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a provider from its config entry.
type Factory[T any] func(ProviderEntry) (T, error)

// factories is the per-kind name table.
type factories[T any] struct {
	kind string
	m    map[string]Factory[T]
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	mk, ok := f.m[entry.Name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return mk(entry)
}

func (f *factories[T]) check(entries ...ProviderEntry) error {
	var errs []error
	for _, e := range entries {
		if _, ok := f.m[e.Name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s/%q (known: %v)", ErrProviderNotRegistered, f.kind, e.Name, f.names()))
		}
	}
	return errors.Join(errs...)
}

func (f *factories[T]) names() []string { return slices.Sorted(maps.Keys(f.m)) }

// Registry maps provider names to constructors, one table per provider kind.
// It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm factories[llm.Provider]
	stt factories[stt.Provider]
	tts factories[tts.Provider]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		llm: factories[llm.Provider]{kind: "llm", m: map[string]Factory[llm.Provider]{}},
		stt: factories[stt.Provider]{kind: "stt", m: map[string]Factory[stt.Provider]{}},
		tts: factories[tts.Provider]{kind: "tts", m: map[string]Factory[tts.Provider]{}},
	}
}

// RegisterLLM registers an LLM factory. A later registration under the same
// name wins.
func (r *Registry) RegisterLLM(name string, f Factory[llm.Provider]) {
	r.mu.Lock()
	r.llm.m[name] = f
	r.mu.Unlock()
}

// RegisterSTT registers a speech-to-text factory.
func (r *Registry) RegisterSTT(name string, f Factory[stt.Provider]) {
	r.mu.Lock()
	r.stt.m[name] = f
	r.mu.Unlock()
}

// RegisterTTS registers a text-to-speech factory.
func (r *Registry) RegisterTTS(name string, f Factory[tts.Provider]) {
	r.mu.Lock()
	r.tts.m[name] = f
	r.mu.Unlock()
}

// CreateLLM builds the LLM provider entry names.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.llm.create(entry)
}

// CreateSTT builds the speech-to-text provider entry names.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stt.create(entry)
}

// CreateTTS builds the text-to-speech provider entry names.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tts.create(entry)
}

// Check reports every provider in pc, primaries and fallbacks, that has no
// registered factory. It lets startup list all typos at once instead of
// failing on the first.
func (r *Registry) Check(pc ProvidersConfig) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return errors.Join(
		r.llm.check(append([]ProviderEntry{pc.LLM}, pc.LLMFallbacks...)...),
		r.stt.check(append([]ProviderEntry{pc.STT}, pc.STTFallbacks...)...),
		r.tts.check(append([]ProviderEntry{pc.TTS}, pc.TTSFallbacks...)...),
	)
}

// Names returns the sorted provider names registered for kind ("llm", "stt"
// or "tts"), or nil for an unknown kind.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch kind {
	case r.llm.kind:
		return r.llm.names()
	case r.stt.kind:
		return r.stt.names()
	case r.tts.kind:
		return r.tts.names()
	}
	return nil
}

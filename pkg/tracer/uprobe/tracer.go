// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

//go:build linux_bpf

package uprobe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/prometheus/procfs"

	"github.com/DataDog/gputrace/pkg/tracer"
	"github.com/DataDog/gputrace/pkg/util/log"
)

const (
	eventMapName  = "api_events"
	enterProgName = "uprobe__api_enter"
	exitProgName  = "uretprobe__api_exit"

	// defaultLibrary is matched against the base name of files mapped by
	// running processes when no library path is configured.
	defaultLibrary = "libcudart.so"
)

// Tracer implements tracer.Tracer with eBPF user-space probes.
type Tracer struct {
	disp    *dispatcher
	coll    *ebpf.Collection
	exe     *link.Executable
	library string

	mu      sync.Mutex
	enabled map[tracer.FunctionID]struct{}
	links   []link.Link
	reader  *ringbuf.Reader
	wg      sync.WaitGroup
	running bool
}

// New loads the eBPF object and opens the traced runtime library. A
// missing library means no CUDA process is running on the host; that is
// reported as tracer.ErrNotSupported so callers can tell it apart from a
// broken setup.
func New(cfg Config) (tracer.Tracer, error) {
	library := cfg.LibraryPath
	if library == "" {
		var err error
		library, err = discoverLibrary(defaultLibrary)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tracer.ErrNotSupported, err)
		}
	}

	spec, err := ebpf.LoadCollectionSpec(cfg.BPFObjectPath)
	if err != nil {
		return nil, fmt.Errorf("loading eBPF object %s: %w", cfg.BPFObjectPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("creating eBPF collection: %w", err)
	}

	exe, err := link.OpenExecutable(library)
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("opening %s: %w", library, err)
	}

	log.Infof("gpu tracer ready, attaching to %s", library)
	return &Tracer{
		disp:    newDispatcher(functionSpecs),
		coll:    coll,
		exe:     exe,
		library: library,
		enabled: make(map[tracer.FunctionID]struct{}),
	}, nil
}

// discoverLibrary walks the memory maps of running processes for a mapped
// file whose base name contains pattern.
func discoverLibrary(pattern string) (string, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return "", fmt.Errorf("opening procfs: %w", err)
	}
	procs, err := fs.AllProcs()
	if err != nil {
		return "", fmt.Errorf("listing processes: %w", err)
	}
	for _, proc := range procs {
		maps, err := proc.ProcMaps()
		if err != nil {
			// Processes exit mid-walk or deny access; keep looking.
			continue
		}
		for _, m := range maps {
			if m.Pathname != "" && strings.Contains(filepath.Base(m.Pathname), pattern) {
				return m.Pathname, nil
			}
		}
	}
	return "", fmt.Errorf("no running process maps %s", pattern)
}

// Functions implements tracer.Tracer.
func (t *Tracer) Functions() []tracer.FunctionInfo {
	return append([]tracer.FunctionInfo(nil), functionSpecs...)
}

// EnableFunction implements tracer.Tracer. The probe pair attaches on
// Enable.
func (t *Tracer) EnableFunction(id tracer.FunctionID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.disp.functions[id]; !ok {
		return fmt.Errorf("unknown function %d", id)
	}
	t.enabled[id] = struct{}{}
	return nil
}

// RegisterCallback implements tracer.Tracer.
func (t *Tracer) RegisterCallback(cb tracer.Callback) error {
	return t.disp.setCallback(cb)
}

// Enable attaches one uprobe/uretprobe pair per enabled function and
// starts draining the event ring buffer. A failure mid-attach detaches
// everything attached so far.
func (t *Tracer) Enable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}

	enter := t.coll.Programs[enterProgName]
	exit := t.coll.Programs[exitProgName]
	if enter == nil || exit == nil {
		return fmt.Errorf("eBPF object is missing programs %s/%s", enterProgName, exitProgName)
	}

	var links []link.Link
	detach := func() {
		for _, l := range links {
			l.Close()
		}
	}
	for id := range t.enabled {
		info := t.disp.functions[id]
		opts := &link.UprobeOptions{Cookie: uint64(id)}
		l, err := t.exe.Uprobe(info.Name, enter, opts)
		if err != nil {
			detach()
			return fmt.Errorf("attaching uprobe %s: %w", info.Name, err)
		}
		links = append(links, l)
		l, err = t.exe.Uretprobe(info.Name, exit, opts)
		if err != nil {
			detach()
			return fmt.Errorf("attaching uretprobe %s: %w", info.Name, err)
		}
		links = append(links, l)
	}

	if t.reader == nil {
		events := t.coll.Maps[eventMapName]
		if events == nil {
			detach()
			return fmt.Errorf("eBPF object is missing map %s", eventMapName)
		}
		reader, err := ringbuf.NewReader(events)
		if err != nil {
			detach()
			return fmt.Errorf("opening ring buffer: %w", err)
		}
		t.reader = reader
		t.wg.Add(1)
		go t.consume(reader)
	}

	t.links = links
	t.running = true
	log.Debugf("attached %d probe pairs to %s", len(t.enabled), t.library)
	return nil
}

func (t *Tracer) consume(reader *ringbuf.Reader) {
	defer t.wg.Done()
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return
			}
			log.Warnf("reading probe events: %v", err)
			continue
		}
		t.disp.handleSample(record.RawSample)
	}
}

// Disable implements tracer.Tracer. It detaches the probes; the ring
// buffer reader keeps draining so a later Enable reuses it.
func (t *Tracer) Disable() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, l := range t.links {
		if err := l.Close(); err != nil {
			log.Warnf("detaching probe: %v", err)
		}
	}
	t.links = nil
	t.running = false
	return nil
}

// Close detaches the probes and releases the eBPF resources.
func (t *Tracer) Close() error {
	_ = t.Disable()

	t.mu.Lock()
	reader := t.reader
	t.reader = nil
	t.mu.Unlock()
	if reader != nil {
		if err := reader.Close(); err != nil {
			log.Warnf("closing ring buffer: %v", err)
		}
	}
	t.wg.Wait()
	t.coll.Close()
	return nil
}

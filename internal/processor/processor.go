// Package processor hosts independent spiking-network instances behind one
// configuration and dispatches simulation calls to them by network id.
//
// A Processor is configured once from Params. Networks are checked against
// the property schema the processor advertises (NetworkProperties) before
// they are compiled, so a mismatching topology is refused without touching
// any instance already loaded under the same id.
//
// The registry itself is safe for concurrent use. Calls addressed to one
// network id must be serialized by the caller; distinct ids share no state
// and may be driven from different goroutines.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/logging"
	"github.com/nvandessel/risp/internal/network"
)

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the operational logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithTracer sets the JSONL trace sink. A nil tracer disables tracing.
func WithTracer(t *logging.TraceLogger) Option {
	return func(p *Processor) { p.tracer = t }
}

// Processor owns a registry of network instances sharing one configuration.
type Processor struct {
	settings *settings
	schema   network.PropertyPack
	logger   *slog.Logger
	tracer   *logging.TraceLogger

	mu       sync.RWMutex
	networks map[int]engine.Engine
}

// New validates params and builds a processor with no networks loaded.
func New(params Params, opts ...Option) (*Processor, error) {
	s, err := resolve(params)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		settings: s,
		schema:   networkProperties(s),
		logger:   logging.Discard(),
		networks: make(map[int]engine.Engine),
	}
	for _, opt := range opts {
		opt(p)
	}

	if s.warning != "" {
		p.logger.Warn(s.warning)
	}
	p.logger.Debug("processor created",
		"name", p.Name(),
		"leak_mode", s.params.LeakMode,
		"discrete", s.opts.Discrete)
	return p, nil
}

// Name returns "risp" for the scalar engine and "vrisp" for the vectorized one.
func (p *Processor) Name() string {
	if p.settings.kind == engine.KindVectorized {
		return "vrisp"
	}
	return "risp"
}

// Params returns the effective parameters, with every default filled in.
func (p *Processor) Params() Params {
	out := p.settings.params
	out.Weights = slices.Clone(out.Weights)
	out.Stds = slices.Clone(out.Stds)
	out.Unknown = nil
	return out
}

// NetworkProperties returns the property schema a network must declare to
// be loaded.
func (p *Processor) NetworkProperties() network.PropertyPack {
	return networkProperties(p.settings)
}

// ProcessorProperties describes the processor's input and output encoding.
func (p *Processor) ProcessorProperties() Properties {
	return processorProperties(p.settings)
}

// checkSchema lists every reason net cannot be loaded by this processor.
func (p *Processor) checkSchema(net *network.Network) []string {
	var diags []string
	if !net.IsNodeProperty(engine.PropThreshold) {
		diags = append(diags, "missing node Threshold property")
	}
	if !net.IsEdgeProperty(engine.PropWeight) {
		diags = append(diags, "missing edge Weight property")
	}
	if !net.IsEdgeProperty(engine.PropDelay) {
		diags = append(diags, "missing edge Delay property")
	}
	if p.settings.params.LeakMode == engine.LeakConfigurable && !net.IsNodeProperty(engine.PropLeak) {
		diags = append(diags, "missing node Leak property")
	}
	if !p.schema.Equal(net.Properties()) {
		diags = append(diags, "network properties differ from the processor's network properties")
		diags = append(diags, p.schema.Diff(net.Properties())...)
	}
	return diags
}

// LoadNetwork compiles net and installs it under id, replacing any instance
// already there. On failure it returns false and an error wrapping
// engine.ErrTopologyMismatch, and the registry is left unchanged.
func (p *Processor) LoadNetwork(net *network.Network, id int) (bool, error) {
	if net == nil {
		return false, fmt.Errorf("%w: nil network", engine.ErrTopologyMismatch)
	}

	if diags := p.checkSchema(net); len(diags) > 0 {
		err := fmt.Errorf("%w: load network %d: %s", engine.ErrTopologyMismatch, id, strings.Join(diags, "; "))
		p.reject(id, err)
		return false, err
	}

	e, err := engine.New(p.settings.kind, net, p.settings.opts)
	if err != nil {
		if !errors.Is(err, engine.ErrTopologyMismatch) {
			err = fmt.Errorf("%w: %w", engine.ErrTopologyMismatch, err)
		}
		err = fmt.Errorf("load network %d: %w", id, err)
		p.reject(id, err)
		return false, err
	}

	p.mu.Lock()
	_, replaced := p.networks[id]
	p.networks[id] = e
	p.mu.Unlock()

	p.logger.Debug("network loaded", "network_id", id, "nodes", net.NumNodes(), "replaced", replaced)
	p.tracer.Log("network_loaded", map[string]any{
		"network_id": id,
		"nodes":      net.NumNodes(),
		"edges":      len(net.Edges()),
		"inputs":     len(net.Inputs()),
		"outputs":    len(net.Outputs()),
		"replaced":   replaced,
	})
	return true, nil
}

func (p *Processor) reject(id int, err error) {
	p.logger.Warn("network rejected", "network_id", id, "error", err)
	p.tracer.Log("network_rejected", map[string]any{"network_id": id, "error": err.Error()})
}

// LoadNetworks loads nets under ids 0..len(nets)-1. On the first failure
// every id up to and including the failing one is removed.
func (p *Processor) LoadNetworks(nets []*network.Network) (bool, error) {
	for i, net := range nets {
		if ok, err := p.LoadNetwork(net, i); !ok {
			p.mu.Lock()
			for j := 0; j <= i; j++ {
				delete(p.networks, j)
			}
			p.mu.Unlock()
			return false, err
		}
	}
	return true, nil
}

// Clear removes the network under id.
func (p *Processor) Clear(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.networks[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNetwork, id)
	}
	delete(p.networks, id)
	return nil
}

// NetworkIDs returns the loaded ids in ascending order.
func (p *Processor) NetworkIDs() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]int, 0, len(p.networks))
	for id := range p.networks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (p *Processor) network(id int) (engine.Engine, error) {
	p.mu.RLock()
	e, ok := p.networks[id]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownNetwork, id)
	}
	return e, nil
}

// lookupAll resolves every id before any of them is touched.
func (p *Processor) lookupAll(ids []int) ([]engine.Engine, error) {
	out := make([]engine.Engine, len(ids))
	for i, id := range ids {
		e, err := p.network(id)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// query runs f against the network under id.
func query[T any](p *Processor, id int, f func(engine.Engine) T) (T, error) {
	e, err := p.network(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(e), nil
}

// queryErr runs a fallible f against the network under id.
func queryErr[T any](p *Processor, id int, f func(engine.Engine) (T, error)) (T, error) {
	e, err := p.network(id)
	if err != nil {
		var zero T
		return zero, err
	}
	return f(e)
}

// ApplySpike queues one spike on network id.
func (p *Processor) ApplySpike(s network.Spike, normalized bool, id int) error {
	e, err := p.network(id)
	if err != nil {
		return err
	}
	return e.ApplySpike(s, normalized)
}

// ApplySpikes queues spikes on network id. Every spike is validated before
// the first is applied.
func (p *Processor) ApplySpikes(spikes []network.Spike, normalized bool, id int) error {
	return p.ApplySpikesMany(spikes, normalized, []int{id})
}

// ApplySpikeMany queues the same spike on each listed network.
func (p *Processor) ApplySpikeMany(s network.Spike, normalized bool, ids []int) error {
	return p.ApplySpikesMany([]network.Spike{s}, normalized, ids)
}

// ApplySpikesMany queues spikes on each listed network, validating every
// id and spike first.
func (p *Processor) ApplySpikesMany(spikes []network.Spike, normalized bool, ids []int) error {
	engines, err := p.lookupAll(ids)
	if err != nil {
		return err
	}
	for i, e := range engines {
		for _, s := range spikes {
			if err := e.CheckSpike(s, normalized); err != nil {
				return fmt.Errorf("network %d: %w", ids[i], err)
			}
		}
	}
	for _, e := range engines {
		for _, s := range spikes {
			// Already validated; ApplySpike cannot fail here.
			_ = e.ApplySpike(s, normalized)
		}
	}
	p.logger.Log(context.Background(), logging.LevelTrace, "spikes applied", "network_ids", ids, "spikes", len(spikes))
	return nil
}

// Run advances network id by duration timesteps.
func (p *Processor) Run(duration float64, id int) error {
	return p.RunMany(duration, []int{id})
}

// RunMany advances each listed network in turn.
func (p *Processor) RunMany(duration float64, ids []int) error {
	engines, err := p.lookupAll(ids)
	if err != nil {
		return err
	}
	for i, e := range engines {
		if err := e.Run(duration); err != nil {
			return fmt.Errorf("network %d: %w", ids[i], err)
		}
		p.traceRun(ids[i], duration, e)
	}
	return nil
}

func (p *Processor) traceRun(id int, duration float64, e engine.Engine) {
	if p.tracer == nil && !p.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	fires := 0
	for _, c := range e.OutputCounts() {
		fires += c
	}
	p.logger.Debug("run completed", "network_id", id, "duration", duration, "time", e.Time(), "output_fires", fires)
	p.tracer.Log("run_completed", map[string]any{
		"network_id":   id,
		"duration":     duration,
		"network_time": e.Time(),
		"output_fires": fires,
	})
}

// Time returns the number of timesteps network id has processed.
func (p *Processor) Time(id int) (float64, error) {
	return query(p, id, engine.Engine.Time)
}

// TrackOutputEvents toggles fire-time history for an output. The bool is
// false when the output does not exist or the engine keeps no history.
func (p *Processor) TrackOutputEvents(outputID int, track bool, id int) (bool, error) {
	return query(p, id, func(e engine.Engine) bool { return e.TrackOutputEvents(outputID, track) })
}

// TrackNeuronEvents toggles fire-time history for a node.
func (p *Processor) TrackNeuronEvents(nodeID uint32, track bool, id int) (bool, error) {
	return query(p, id, func(e engine.Engine) bool { return e.TrackNeuronEvents(nodeID, track) })
}

func (p *Processor) OutputLastFire(outputID, id int) (float64, error) {
	return queryErr(p, id, func(e engine.Engine) (float64, error) { return e.OutputLastFire(outputID) })
}

func (p *Processor) OutputLastFires(id int) ([]float64, error) {
	return query(p, id, engine.Engine.OutputLastFires)
}

func (p *Processor) OutputCount(outputID, id int) (int, error) {
	return queryErr(p, id, func(e engine.Engine) (int, error) { return e.OutputCount(outputID) })
}

func (p *Processor) OutputCounts(id int) ([]int, error) {
	return query(p, id, engine.Engine.OutputCounts)
}

func (p *Processor) OutputVector(outputID, id int) ([]float64, error) {
	return queryErr(p, id, func(e engine.Engine) ([]float64, error) { return e.OutputVector(outputID) })
}

func (p *Processor) OutputVectors(id int) ([][]float64, error) {
	return query(p, id, engine.Engine.OutputVectors)
}

// TotalNeuronCounts returns fires since the previous call, or -1 when the
// engine keeps no totals.
func (p *Processor) TotalNeuronCounts(id int) (int64, error) {
	return query(p, id, engine.Engine.TotalNeuronCounts)
}

// TotalNeuronAccumulates returns deltas applied since the previous call, or
// -1 when the engine keeps no totals.
func (p *Processor) TotalNeuronAccumulates(id int) (int64, error) {
	return query(p, id, engine.Engine.TotalNeuronAccumulates)
}

func (p *Processor) NeuronCounts(id int) ([]int, error) {
	return query(p, id, engine.Engine.NeuronCounts)
}

func (p *Processor) NeuronLastFires(id int) ([]float64, error) {
	return query(p, id, engine.Engine.NeuronLastFires)
}

func (p *Processor) NeuronVectors(id int) ([][]float64, error) {
	return query(p, id, engine.Engine.NeuronVectors)
}

func (p *Processor) NeuronCharges(id int) ([]float64, error) {
	return query(p, id, engine.Engine.NeuronCharges)
}

// SynapseWeights returns parallel source, target and stored-weight slices.
func (p *Processor) SynapseWeights(id int) (pres, posts []uint32, vals []float64, err error) {
	e, err := p.network(id)
	if err != nil {
		return nil, nil, nil, err
	}
	pres, posts, vals = e.SynapseWeights()
	return pres, posts, vals, nil
}

// ClearActivity drops charge, queued spikes and history on network id.
func (p *Processor) ClearActivity(id int) error {
	e, err := p.network(id)
	if err != nil {
		return err
	}
	e.ClearActivity()
	return nil
}

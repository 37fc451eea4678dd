package render

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gogpu/naga"
)

// CachedRenderPipelineId indexes a pipeline queued in the PipelineCache.
type CachedRenderPipelineId int

type PipelineState int

const (
	PipelineQueued PipelineState = iota
	PipelineCreating
	PipelineOk
	PipelineErr
)

func (s PipelineState) String() string {
	switch s {
	case PipelineQueued:
		return "queued"
	case PipelineCreating:
		return "creating"
	case PipelineOk:
		return "ok"
	case PipelineErr:
		return "err"
	}
	return "unknown"
}

var ErrShaderNotFound = errors.New("shader not found")

// ShaderStageDescriptor names a shader entry point and the defs it is
// pre-processed with.
type ShaderStageDescriptor struct {
	Shader     ShaderHandle
	EntryPoint string
	ShaderDefs []string
}

type FragmentDescriptor struct {
	ShaderStageDescriptor
	Targets []wgpu.ColorTargetState
}

// PipelineDescriptor is what render code queues; shaders are referenced
// by handle and compiled by the cache.
type PipelineDescriptor struct {
	Label        string
	Layout       []BindGroupLayout
	Vertex       ShaderStageDescriptor
	Fragment     *FragmentDescriptor
	DepthStencil *wgpu.DepthStencilState
	Multisample  wgpu.MultisampleState
}

type compileResult struct {
	pipeline RenderPipeline
	err      error
}

type cachedPipeline struct {
	descriptor PipelineDescriptor
	state      PipelineState
	pipeline   RenderPipeline
	err        error
	pending    chan compileResult
}

type shaderModuleKey struct {
	handle ShaderHandle
	defs   string
}

// PipelineCache compiles queued pipelines during ProcessQueue. With a
// worker pool, compilation runs in the background and a pipeline becomes
// available on a later ProcessQueue.
type PipelineCache struct {
	device   Device
	shaders  *Shaders
	logger   gekko.Logger
	validate bool
	async    bool
	pool     worker.DynamicWorkerPool
	taskId   int

	pipelines []*cachedPipeline
	waiting   []CachedRenderPipelineId

	modulesMu sync.Mutex
	modules   map[shaderModuleKey]ShaderModule
}

type PipelineCacheOptions struct {
	// Workers > 0 compiles pipelines on a worker pool.
	Workers int
	// Validate runs every pre-processed shader through naga first.
	Validate bool
}

func NewPipelineCache(device Device, shaders *Shaders, logger gekko.Logger, opts PipelineCacheOptions) *PipelineCache {
	cache := &PipelineCache{
		device:   device,
		shaders:  shaders,
		logger:   logger,
		validate: opts.Validate,
		modules:  map[shaderModuleKey]ShaderModule{},
	}
	if opts.Workers > 0 {
		cache.async = true
		cache.pool = worker.NewDynamicWorkerPool(opts.Workers, 64, 1*time.Second)
	}
	return cache
}

func (c *PipelineCache) QueueRenderPipeline(desc PipelineDescriptor) CachedRenderPipelineId {
	id := CachedRenderPipelineId(len(c.pipelines))
	c.pipelines = append(c.pipelines, &cachedPipeline{descriptor: desc, state: PipelineQueued})
	c.waiting = append(c.waiting, id)
	return id
}

func (c *PipelineCache) GetRenderPipelineState(id CachedRenderPipelineId) PipelineState {
	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return PipelineErr
	}
	return c.pipelines[id].state
}

// GetRenderPipeline returns the compiled pipeline, or false while it is
// still queued, compiling, or failed.
func (c *PipelineCache) GetRenderPipeline(id CachedRenderPipelineId) (RenderPipeline, bool) {
	if c.GetRenderPipelineState(id) != PipelineOk {
		return nil, false
	}
	return c.pipelines[id].pipeline, true
}

func (c *PipelineCache) GetRenderPipelineDescriptor(id CachedRenderPipelineId) (PipelineDescriptor, bool) {
	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return PipelineDescriptor{}, false
	}
	return c.pipelines[id].descriptor, true
}

// Len returns the number of pipelines ever queued.
func (c *PipelineCache) Len() int {
	return len(c.pipelines)
}

// ProcessQueue starts compilation of queued pipelines and collects
// finished ones.
func (c *PipelineCache) ProcessQueue() {
	waiting := c.waiting[:0]
	for _, id := range c.waiting {
		if c.processPipeline(id) {
			waiting = append(waiting, id)
		}
	}
	c.waiting = waiting
}

// processPipeline reports whether the pipeline still needs processing.
func (c *PipelineCache) processPipeline(id CachedRenderPipelineId) bool {
	cached := c.pipelines[id]
	switch cached.state {
	case PipelineQueued:
		if !c.async {
			c.finish(id, c.compile(cached.descriptor))
			return false
		}
		cached.state = PipelineCreating
		cached.pending = make(chan compileResult, 1)
		desc, pending := cached.descriptor, cached.pending
		c.taskId++
		c.pool.SubmitTask(worker.Task{
			ID: c.taskId,
			Do: func() (any, error) {
				result := c.compile(desc)
				pending <- result
				return nil, result.err
			},
		})
		return true
	case PipelineCreating:
		select {
		case result := <-cached.pending:
			cached.pending = nil
			c.finish(id, result)
			return false
		default:
			return true
		}
	}
	return false
}

func (c *PipelineCache) finish(id CachedRenderPipelineId, result compileResult) {
	cached := c.pipelines[id]
	if result.err != nil {
		cached.state = PipelineErr
		cached.err = result.err
		c.logger.Errorf("failed to create render pipeline %q: %v", cached.descriptor.Label, result.err)
		return
	}
	cached.state = PipelineOk
	cached.pipeline = result.pipeline
}

// Err returns the compilation error of a failed pipeline.
func (c *PipelineCache) Err(id CachedRenderPipelineId) error {
	if int(id) < 0 || int(id) >= len(c.pipelines) {
		return fmt.Errorf("unknown pipeline %d", id)
	}
	return c.pipelines[id].err
}

func (c *PipelineCache) compile(desc PipelineDescriptor) compileResult {
	vertex, err := c.shaderModule(desc.Vertex)
	if err != nil {
		return compileResult{err: fmt.Errorf("vertex stage: %w", err)}
	}

	backend := RenderPipelineDescriptor{
		Label:        desc.Label,
		Layout:       desc.Layout,
		Vertex:       VertexState{Module: vertex, EntryPoint: desc.Vertex.EntryPoint},
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.Multisample,
	}
	if backend.Multisample.Count == 0 {
		backend.Multisample.Count = 1
	}
	if backend.Multisample.Mask == 0 {
		backend.Multisample.Mask = 0xFFFFFFFF
	}
	if desc.Fragment != nil {
		fragment, err := c.shaderModule(desc.Fragment.ShaderStageDescriptor)
		if err != nil {
			return compileResult{err: fmt.Errorf("fragment stage: %w", err)}
		}
		backend.Fragment = &FragmentState{
			Module:     fragment,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Fragment.Targets,
		}
	}

	pipeline, err := c.device.CreateRenderPipeline(&backend)
	if err != nil {
		return compileResult{err: err}
	}
	return compileResult{pipeline: pipeline}
}

func (c *PipelineCache) shaderModule(stage ShaderStageDescriptor) (ShaderModule, error) {
	defs := slices.Clone(stage.ShaderDefs)
	slices.Sort(defs)
	key := shaderModuleKey{handle: stage.Shader, defs: strings.Join(defs, ",")}

	c.modulesMu.Lock()
	defer c.modulesMu.Unlock()
	if module, ok := c.modules[key]; ok {
		return module, nil
	}

	shader, ok := c.shaders.Get(stage.Shader)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrShaderNotFound, stage.Shader)
	}
	source, err := ProcessShader(shader.Source, defs)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", shader.Path, err)
	}
	if c.validate {
		if _, err := naga.Compile(source); err != nil {
			return nil, fmt.Errorf("validate %s [%s]: %w", shader.Path, key.defs, err)
		}
	}
	module, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          shader.Path,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	})
	if err != nil {
		return nil, fmt.Errorf("create shader module %s: %w", shader.Path, err)
	}
	c.modules[key] = module
	return module, nil
}

// SpecializedRenderPipelines caches one queued pipeline per key.
type SpecializedRenderPipelines[K comparable] struct {
	cache map[K]CachedRenderPipelineId
}

func NewSpecializedRenderPipelines[K comparable]() *SpecializedRenderPipelines[K] {
	return &SpecializedRenderPipelines[K]{cache: map[K]CachedRenderPipelineId{}}
}

// Specialize returns the pipeline for key, queueing specialize(key) the
// first time the key is seen.
func (s *SpecializedRenderPipelines[K]) Specialize(cache *PipelineCache, key K, specialize func(K) PipelineDescriptor) CachedRenderPipelineId {
	if id, ok := s.cache[key]; ok {
		return id
	}
	id := cache.QueueRenderPipeline(specialize(key))
	s.cache[key] = id
	return id
}

func (s *SpecializedRenderPipelines[K]) Len() int {
	return len(s.cache)
}

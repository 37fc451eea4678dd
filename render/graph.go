package render

import (
	"fmt"
	"slices"
	"sort"

	gekko "github.com/gekko3d/gekko-showprepass"
)

type (
	NodeLabel     string
	SubGraphLabel string
)

// Node is a unit of GPU work in a graph, run once per graph execution.
type Node interface {
	Run(ctx *RenderContext, cmd *gekko.Commands) error
}

// ViewNode is a node that runs against the view the graph executes for.
type ViewNode interface {
	Run(ctx *RenderContext, view gekko.EntityId, cmd *gekko.Commands) error
}

// ViewNodeRunner adapts a ViewNode to a Node; it is a no-op when the
// graph is not running for a view.
type ViewNodeRunner struct {
	Node ViewNode
}

func (r ViewNodeRunner) Run(ctx *RenderContext, cmd *gekko.Commands) error {
	view, ok := ctx.View()
	if !ok {
		return nil
	}
	return r.Node.Run(ctx, view, cmd)
}

// EmptyNode only anchors edges.
type EmptyNode struct{}

func (EmptyNode) Run(*RenderContext, *gekko.Commands) error { return nil }

// Graph is a set of labelled nodes ordered by edges.
type Graph struct {
	nodes    map[NodeLabel]Node
	inserted []NodeLabel
	edges    map[NodeLabel][]NodeLabel
	order    []NodeLabel
	dirty    bool
}

func NewGraph() *Graph {
	return &Graph{nodes: map[NodeLabel]Node{}, edges: map[NodeLabel][]NodeLabel{}}
}

func (g *Graph) AddNode(label NodeLabel, node Node) {
	if _, ok := g.nodes[label]; ok {
		panic(fmt.Sprintf("render graph node %q already exists", label))
	}
	g.nodes[label] = node
	g.inserted = append(g.inserted, label)
	g.dirty = true
}

func (g *Graph) HasNode(label NodeLabel) bool {
	_, ok := g.nodes[label]
	return ok
}

// AddNodeEdge makes to run after from. Both nodes must exist.
func (g *Graph) AddNodeEdge(from, to NodeLabel) {
	for _, label := range []NodeLabel{from, to} {
		if !g.HasNode(label) {
			panic(fmt.Sprintf("render graph node %q does not exist", label))
		}
	}
	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
	g.dirty = true
}

// AddNodeEdges chains labels in order.
func (g *Graph) AddNodeEdges(labels ...NodeLabel) {
	for i := 1; i < len(labels); i++ {
		g.AddNodeEdge(labels[i-1], labels[i])
	}
}

// Order returns the execution order. Among nodes whose dependencies are
// met, the one added first runs first.
func (g *Graph) Order() ([]NodeLabel, error) {
	if !g.dirty && g.order != nil {
		return g.order, nil
	}

	position := make(map[NodeLabel]int, len(g.inserted))
	inDegree := make(map[NodeLabel]int, len(g.inserted))
	for i, label := range g.inserted {
		position[label] = i
		for _, to := range g.edges[label] {
			inDegree[to]++
		}
	}

	var ready []NodeLabel
	for _, label := range g.inserted {
		if inDegree[label] == 0 {
			ready = append(ready, label)
		}
	}

	order := make([]NodeLabel, 0, len(g.inserted))
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return position[ready[i]] < position[ready[j]] })
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)
		for _, to := range g.edges[next] {
			inDegree[to]--
			if inDegree[to] == 0 {
				ready = append(ready, to)
			}
		}
	}

	if len(order) != len(g.inserted) {
		return nil, fmt.Errorf("render graph has a cycle")
	}
	g.order = order
	g.dirty = false
	return order, nil
}

func (g *Graph) Run(ctx *RenderContext, cmd *gekko.Commands) error {
	order, err := g.Order()
	if err != nil {
		return err
	}
	for _, label := range order {
		if err := g.nodes[label].Run(ctx, cmd); err != nil {
			return fmt.Errorf("node %s: %w", label, err)
		}
	}
	return nil
}

// RenderGraph holds the sub-graphs cameras render through.
type RenderGraph struct {
	subGraphs map[SubGraphLabel]*Graph
}

func NewRenderGraph() *RenderGraph {
	return &RenderGraph{subGraphs: map[SubGraphLabel]*Graph{}}
}

func (r *RenderGraph) AddSubGraph(label SubGraphLabel, graph *Graph) {
	if _, ok := r.subGraphs[label]; ok {
		panic(fmt.Sprintf("render sub graph %q already exists", label))
	}
	r.subGraphs[label] = graph
}

func (r *RenderGraph) SubGraph(label SubGraphLabel) (*Graph, bool) {
	graph, ok := r.subGraphs[label]
	return graph, ok
}

// MustSubGraph panics when label was never added.
func (r *RenderGraph) MustSubGraph(label SubGraphLabel) *Graph {
	graph, ok := r.SubGraph(label)
	if !ok {
		panic(fmt.Sprintf("render sub graph %q does not exist", label))
	}
	return graph
}

// CameraDriver marks a render entity with the sub-graph it renders with.
type CameraDriver struct {
	Graph SubGraphLabel
}

// RenderContext is passed to every node of a frame.
type RenderContext struct {
	device  Device
	encoder CommandEncoder
	view    gekko.EntityId
	hasView bool
}

func (c *RenderContext) Device() Device {
	return c.device
}

func (c *RenderContext) View() (gekko.EntityId, bool) {
	return c.view, c.hasView
}

// BeginRenderPass starts a pass on the frame's command encoder.
func (c *RenderContext) BeginRenderPass(desc *RenderPassDescriptor) RenderPass {
	return c.encoder.BeginRenderPass(desc)
}

// runRenderGraph processes the pipeline queue, then runs each camera's
// sub-graph in camera order into one command buffer and presents.
func runRenderGraph(cmd *gekko.Commands, graph *RenderGraph, device *RenderDevice, cache *PipelineCache, surface *RenderSurface) {
	cache.ProcessQueue()

	type view struct {
		id    gekko.EntityId
		order int
		graph SubGraphLabel
	}
	var views []view
	gekko.MakeQuery2[ExtractedCamera, CameraDriver](cmd).Map(func(eid gekko.EntityId, camera *ExtractedCamera, driver *CameraDriver) bool {
		views = append(views, view{id: eid, order: camera.Order, graph: driver.Graph})
		return true
	})
	sort.Slice(views, func(i, j int) bool {
		if views[i].order != views[j].order {
			return views[i].order < views[j].order
		}
		return views[i].id < views[j].id
	})

	encoder, err := device.Device.CreateCommandEncoder("render_graph")
	if err != nil {
		cmd.Logger().Errorf("render graph: create command encoder: %v", err)
		return
	}
	defer encoder.Release()

	ctx := &RenderContext{device: device.Device, encoder: encoder}
	for _, v := range views {
		sub, ok := graph.SubGraph(v.graph)
		if !ok {
			cmd.Logger().Warnf("camera %d uses unknown render graph %q", v.id, v.graph)
			continue
		}
		ctx.view, ctx.hasView = v.id, true
		if err := sub.Run(ctx, cmd); err != nil {
			cmd.Logger().Errorf("render graph %s: %v", v.graph, err)
		}
	}

	buffer, err := encoder.Finish()
	if err != nil {
		cmd.Logger().Errorf("render graph: finish command encoder: %v", err)
		return
	}
	device.Device.Submit(buffer)
	buffer.Release()

	if _, ok := surface.View(); ok {
		surface.Surface.Present()
	}
}

// acquireSurfaceTexture fetches the swapchain image for this frame.
func acquireSurfaceTexture(cmd *gekko.Commands, surface *RenderSurface) {
	if surface.Surface == nil {
		return
	}
	view, err := surface.Surface.Acquire()
	if err != nil {
		cmd.Logger().Warnf("acquire surface texture: %v", err)
		return
	}
	surface.view = view
}

func releaseSurfaceTexture(surface *RenderSurface) {
	if surface.view != nil {
		surface.view.Release()
		surface.view = nil
	}
}

package showprepass

import (
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
)

// missingTextures remembers which views were already warned about for
// which mode, so each missing-texture event logs once.
type missingTextures struct {
	warned map[gekko.EntityId]Mode
}

func prepareShowPrepassUniforms(cmd *gekko.Commands, t *gekko.Time) {
	gekko.MakeQuery2[ShowPrepass, DepthPower](cmd).Map(
		func(eid gekko.EntityId, _ *ShowPrepass, power *DepthPower) bool {
			uniform := showPrepassUniform{DepthPower: defaultDepthPower, DeltaTime: t.DeltaSeconds()}
			if power != nil {
				uniform.DepthPower = power.Power
			}
			cmd.AddComponents(eid, uniform)
			return true
		}, DepthPower{})

	gekko.MakeQuery2[showPrepassUniform, ShowPrepass](cmd).Map(
		func(eid gekko.EntityId, _ *showPrepassUniform, show *ShowPrepass) bool {
			if show == nil {
				cmd.RemoveComponents(eid, showPrepassUniform{})
			}
			return true
		}, ShowPrepass{})
}

func prepareShowPrepassBindGroups(
	cmd *gekko.Commands,
	device *render.RenderDevice,
	uniforms *render.ComponentUniforms[showPrepassUniform],
	pipelines *showPrepassPipelines,
	missing *missingTextures,
) {
	gekko.MakeQuery2[showPrepassBindGroup, ShowPrepass](cmd).Map(
		func(eid gekko.EntityId, group *showPrepassBindGroup, show *ShowPrepass) bool {
			if show == nil {
				group.Release()
				cmd.RemoveComponents(eid, showPrepassBindGroup{})
			}
			return true
		}, ShowPrepass{})
	for eid := range missing.warned {
		if !gekko.HasComponent[ShowPrepass](cmd, eid) {
			delete(missing.warned, eid)
		}
	}

	buffer, ok := uniforms.Binding()
	if !ok {
		return
	}

	gekko.MakeQuery3[ShowPrepass, render.ViewPrepassTextures, render.Msaa](cmd).Map(
		func(eid gekko.EntityId, show *ShowPrepass, textures *render.ViewPrepassTextures, msaa *render.Msaa) bool {
			existing, hasExisting := gekko.GetComponent[showPrepassBindGroup](cmd, eid)

			view, ok := prepassView(show.Mode, textures)
			if !ok {
				if warned, seen := missing.warned[eid]; !seen || warned != show.Mode {
					cmd.Logger().Warnf("show prepass: view %d has no %s prepass texture this frame; the camera needs the matching prepass marker and a non-empty render target", eid, show.Mode)
					missing.warned[eid] = show.Mode
				}
				if hasExisting {
					existing.Release()
					cmd.RemoveComponents(eid, showPrepassBindGroup{})
				}
				return true
			}
			delete(missing.warned, eid)

			key := layoutKey{mode: show.Mode, multisampled: msaa.IsMultisampled()}
			group, err := device.Device.CreateBindGroup(&render.BindGroupDescriptor{
				Label:  "show_prepass_bind_group",
				Layout: pipelines.layouts[key],
				Entries: []render.BindGroupEntry{
					{Binding: 0, Buffer: buffer, Size: render.UniformSize[showPrepassUniform]()},
					{Binding: 1, TextureView: view},
				},
			})
			if err != nil {
				cmd.Logger().Errorf("show prepass: create bind group for view %d: %v", eid, err)
				return true
			}
			if hasExisting {
				existing.Release()
			}
			cmd.AddComponents(eid, showPrepassBindGroup{BindGroup: group})
			return true
		}, render.ViewPrepassTextures{}, render.Msaa{})
}

func prepassView(mode Mode, textures *render.ViewPrepassTextures) (render.TextureView, bool) {
	if textures == nil {
		return nil, false
	}
	switch mode {
	case Depth:
		return textures.DepthView()
	case Normals:
		return textures.NormalView()
	case MotionVectors:
		return textures.MotionVectorsView()
	}
	return nil, false
}

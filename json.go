// Copyright 2023 The McCode Authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Structural JSON for the IR. Instances are persisted as dependent
// records carrying their component type name and placement reference
// names; decoding rebuilds the pointer graph in component order.

package mccode

import (
	"encoding/json"
	"fmt"
)

type vectorRefJSON struct {
	Vector Vector `json:"vector"`
	Ref    string `json:"ref,omitempty"`
}

type anglesRefJSON struct {
	Angles Angles `json:"angles"`
	Ref    string `json:"ref,omitempty"`
}

// depInstanceJSON is the serialised, reference-by-name form of an
// Instance.
type depInstanceJSON struct {
	Name           string               `json:"name"`
	Type           string               `json:"type"`
	AtRelative     vectorRefJSON        `json:"at_relative"`
	RotateRelative anglesRefJSON        `json:"rotate_relative"`
	Parameters     []ComponentParameter `json:"parameters"`
	Removable      bool                 `json:"removable"`
	Cpu            bool                 `json:"cpu"`
	Split          Expr                 `json:"split,omitempty"`
	When           Expr                 `json:"when,omitempty"`
	Group          string               `json:"group,omitempty"`
	Extend         []RawC               `json:"extend"`
	Jump           []Jump               `json:"jump"`
	Metadata       []MetaData           `json:"metadata"`
	Mode           string               `json:"mode"`
}

func depInstanceFromIndependent(inst *Instance) depInstanceJSON {
	d := depInstanceJSON{
		Name:       inst.Name,
		Type:       inst.Type.Name,
		AtRelative: vectorRefJSON{Vector: inst.AtRelative.Vector},
		RotateRelative: anglesRefJSON{
			Angles: inst.RotateRelative.Angles,
		},
		Parameters: inst.Parameters,
		Removable:  inst.Removable,
		Cpu:        inst.Cpu,
		Split:      inst.Split,
		When:       inst.When,
		Group:      inst.Group,
		Extend:     inst.Extend,
		Jump:       inst.Jump,
		Metadata:   inst.Metadata,
		Mode:       inst.Mode.String(),
	}
	if inst.AtRelative.Ref != nil {
		d.AtRelative.Ref = inst.AtRelative.Ref.Name
	}
	if inst.RotateRelative.Ref != nil {
		d.RotateRelative.Ref = inst.RotateRelative.Ref.Name
	}
	return d
}

// makeIndependent rebuilds instance pointers from dependent records and
// the component-type map, recomputing orientations in component order.
func makeIndependent(deps []depInstanceJSON, components map[string]*Comp) ([]*Instance, error) {
	instances := make([]*Instance, 0, len(deps))
	byName := make(map[string]*Instance, len(deps))
	for _, d := range deps {
		comp, ok := components[d.Type]
		if !ok {
			return nil, fmt.Errorf("instance %s: component type %s: %w", d.Name, d.Type, ErrUnknownReference)
		}
		mode := ModeNormal
		if d.Mode == "minimal" {
			mode = ModeMinimal
		}
		inst := &Instance{
			Name:           d.Name,
			Type:           comp,
			AtRelative:     VectorRef{Vector: d.AtRelative.Vector},
			RotateRelative: AnglesRef{Angles: d.RotateRelative.Angles},
			Parameters:     d.Parameters,
			Removable:      d.Removable,
			Cpu:            d.Cpu,
			Split:          d.Split,
			When:           d.When,
			Group:          d.Group,
			Extend:         d.Extend,
			Jump:           d.Jump,
			Metadata:       d.Metadata,
			Mode:           mode,
		}
		if d.AtRelative.Ref != "" {
			ref, ok := byName[d.AtRelative.Ref]
			if !ok {
				return nil, fmt.Errorf("instance %s: placement reference %s: %w",
					d.Name, d.AtRelative.Ref, ErrUnknownReference)
			}
			inst.AtRelative.Ref = ref
		}
		if d.RotateRelative.Ref != "" {
			ref, ok := byName[d.RotateRelative.Ref]
			if !ok {
				return nil, fmt.Errorf("instance %s: rotation reference %s: %w",
					d.Name, d.RotateRelative.Ref, ErrUnknownReference)
			}
			inst.RotateRelative.Ref = ref
		}
		if mode != ModeMinimal {
			inst.computeOrientation()
		}
		byName[d.Name] = inst
		instances = append(instances, inst)
	}
	return instances, nil
}

type registryJSON struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Root     string `json:"root,omitempty"`
	URL      string `json:"url,omitempty"`
	Version  string `json:"version,omitempty"`
	Priority int    `json:"priority"`
}

func registryToJSON(reg Registry) registryJSON {
	switch r := reg.(type) {
	case *LocalRegistry:
		return registryJSON{Type: "local", Name: r.RegName, Root: r.Root, Priority: r.RegPrior}
	case *RemoteRegistry:
		return registryJSON{Type: "remote", Name: r.RegName, URL: r.URL, Version: r.Version(), Priority: r.RegPrior}
	case *ModuleRegistry:
		return registryJSON{Type: "module", Name: r.RegName, Priority: r.RegPrior}
	}
	return registryJSON{Type: "memory", Name: reg.Name(), Priority: reg.Priority()}
}

func registryFromJSON(rj registryJSON) Registry {
	switch rj.Type {
	case "local":
		return NewLocalRegistry(rj.Name, rj.Root, rj.Priority)
	case "remote":
		return NewRemoteRegistry(rj.Name, rj.URL, rj.Version, "", nil)
	}
	return NewInMemoryRegistry(rj.Name, map[string]string{})
}

type instrJSON struct {
	Name       string                `json:"name"`
	Source     string                `json:"source,omitempty"`
	Parameters []InstrumentParameter `json:"parameters"`
	Metadata   []MetaData            `json:"metadata"`
	Instances  []depInstanceJSON     `json:"instances"`
	Components map[string]*Comp      `json:"components"`
	Included   []string              `json:"included"`
	User       []RawC                `json:"user"`
	Declare    []RawC                `json:"declare"`
	Initialize []RawC                `json:"initialize"`
	Save       []RawC                `json:"save"`
	Final      []RawC                `json:"final"`
	Flags      []string              `json:"flags"`
	Registries []registryJSON        `json:"registries"`
	FlowEdges  []FlowEdgeRecord      `json:"flow_edges"`
}

// MarshalJSON encodes the instrument with by-name instance references
// and a component-type table.
func (in *Instr) MarshalJSON() ([]byte, error) {
	out := instrJSON{
		Name:       in.Name,
		Source:     in.Source,
		Parameters: in.Parameters,
		Metadata:   in.Metadata,
		Included:   in.Included,
		User:       in.User,
		Declare:    in.Declare,
		Initialize: in.Initialize,
		Save:       in.Save,
		Final:      in.Final,
		Flags:      in.Flags,
		FlowEdges:  in.FlowEdges,
		Components: make(map[string]*Comp),
	}
	for _, inst := range in.Components {
		out.Instances = append(out.Instances, depInstanceFromIndependent(inst))
		out.Components[inst.Type.Name] = inst.Type
	}
	for _, reg := range in.Registries {
		out.Registries = append(out.Registries, registryToJSON(reg))
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the instrument, reconstructing the instance
// reference graph and the group table.
func (in *Instr) UnmarshalJSON(data []byte) error {
	var raw instrJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	instances, err := makeIndependent(raw.Instances, raw.Components)
	if err != nil {
		return err
	}
	*in = Instr{
		Name:       raw.Name,
		Source:     raw.Source,
		Parameters: raw.Parameters,
		Metadata:   raw.Metadata,
		Components: instances,
		Included:   raw.Included,
		User:       raw.User,
		Declare:    raw.Declare,
		Initialize: raw.Initialize,
		Save:       raw.Save,
		Final:      raw.Final,
		Groups:     make(map[string]*Group),
		Flags:      raw.Flags,
		FlowEdges:  raw.FlowEdges,
	}
	for _, rj := range raw.Registries {
		in.Registries = append(in.Registries, registryFromJSON(rj))
	}
	in.DetermineGroups()
	return nil
}

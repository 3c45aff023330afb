package schemas

import (
	"time"
)

// -- Node Descriptor Schemas --

// Role is the semantic role the engine infers for a node. It is deliberately a
// small vocabulary; anything the engine cannot classify becomes RoleGeneric.
type Role string

const (
	RoleButton   Role = "button"
	RoleLink     Role = "link"
	RoleInput    Role = "input"
	RoleTextarea Role = "textarea"
	RoleSelect   Role = "select"
	RoleCheckbox Role = "checkbox"
	RoleRadio    Role = "radio"
	RoleTab      Role = "tab"
	RoleMenuItem Role = "menuitem"
	RoleOption   Role = "option"
	RoleSlider   Role = "slider"
	RoleGeneric  Role = "generic"
)

// LocatorKind names a technique for re-finding a node, ordered by a priori
// reliability from identifier down to visible text.
type LocatorKind string

const (
	LocatorID    LocatorKind = "id"
	LocatorData  LocatorKind = "data"
	LocatorName  LocatorKind = "name"
	LocatorClass LocatorKind = "class"
	LocatorPath  LocatorKind = "path"
	LocatorText  LocatorKind = "text"
	// LocatorIntent is only valid inside a TargetSpec; descriptors never carry it.
	LocatorIntent LocatorKind = "intent"
)

// Locator is one candidate way to re-find a node.
type Locator struct {
	Kind       LocatorKind `json:"kind"`
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
}

// Geometry holds a node's position and size in viewport coordinates.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NodeDescriptor is the engine's normalized snapshot of one document node.
// The ID is derived only from identity-relevant fields (tag, stable attributes,
// sampled text, structural path), never from geometry, so the same physical node
// keeps the same cache key while it drifts around the viewport.
type NodeDescriptor struct {
	ID           string            `json:"id"`
	Tag          string            `json:"tag"`
	Role         Role              `json:"role"`
	Text         string            `json:"text"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Geometry     Geometry          `json:"geometry"`
	Visible      bool              `json:"visible"`
	Interactable bool              `json:"interactable"`
	Locators     []Locator         `json:"locators"`
	FirstSeen    time.Time         `json:"firstSeen"`
	LastSeen     time.Time         `json:"lastSeen"`
	UpdateCount  int               `json:"updateCount"`
}

// BestLocator returns the highest-confidence locator, which is always the first
// one because the extractor emits them sorted.
func (d *NodeDescriptor) BestLocator() (Locator, bool) {
	if len(d.Locators) == 0 {
		return Locator{}, false
	}
	return d.Locators[0], true
}

// Clone returns a deep copy so cache internals never leak mutable state across
// the engine boundary.
func (d *NodeDescriptor) Clone() *NodeDescriptor {
	cp := *d
	if d.Attributes != nil {
		cp.Attributes = make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			cp.Attributes[k] = v
		}
	}
	if d.Locators != nil {
		cp.Locators = make([]Locator, len(d.Locators))
		copy(cp.Locators, d.Locators)
	}
	return &cp
}

// Match pairs a descriptor with the resolver's confidence in it.
type Match struct {
	Descriptor *NodeDescriptor `json:"descriptor"`
	Score      float64         `json:"score"`
}

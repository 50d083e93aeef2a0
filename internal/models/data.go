package models

import (
	"strconv"
	"strings"
)

// NodeType is the visual kind of a node. It only affects rendering.
type NodeType string

// Node types.
const (
	NodeNote      NodeType = "note"
	NodeDecision  NodeType = "decision"
	NodeMilestone NodeType = "milestone"
	NodeService   NodeType = "service"
	NodeKPI       NodeType = "kpi"
	NodeSwimlane  NodeType = "swimlane"
	NodeIdea      NodeType = "idea"
	NodeTopic     NodeType = "topic"
	NodeTask      NodeType = "task"
	NodeRisk      NodeType = "risk"
	NodePersona   NodeType = "persona"
)

// DefaultLabel is shown for nodes without a label.
const DefaultLabel = "Idea"

var allNodeTypes = []NodeType{
	NodeNote, NodeDecision, NodeMilestone, NodeService, NodeKPI, NodeSwimlane,
	NodeIdea, NodeTopic, NodeTask, NodeRisk, NodePersona,
}

// NodeTypes returns every known node type in palette order.
func NodeTypes() []NodeType {
	out := make([]NodeType, len(allNodeTypes))
	copy(out, allNodeTypes)
	return out
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, k := range allNodeTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ParseNodeType normalizes s to a known type. Empty and unknown values map to note.
func ParseNodeType(s string) NodeType {
	t := NodeType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return NodeNote
}

// NodeData is the per-type payload of a node. The set of implementations is
// closed; use NewData or DecodeData to obtain one.
type NodeData interface {
	Type() NodeType
	Label() string
	SetLabel(label string)
	// Fields returns the type-specific attributes that are set.
	Fields() map[string]any
	common() *Common
	setField(key string, v any) bool
	clone() NodeData
}

// Common holds what every variant carries: the label and any attributes the
// variant does not model.
type Common struct {
	Text  string
	Extra map[string]any
}

// Label returns the node label.
func (c *Common) Label() string { return c.Text }

// SetLabel replaces the node label.
func (c *Common) SetLabel(label string) { c.Text = label }

func (c *Common) common() *Common { return c }

func (c Common) copyCommon() Common {
	return Common{Text: c.Text, Extra: cloneBag(c.Extra)}
}

// NoteData is a free-form note.
type NoteData struct {
	Common
	Desc string
}

func (*NoteData) Type() NodeType { return NodeNote }

func (d *NoteData) Fields() map[string]any {
	return nonEmpty(map[string]any{"desc": d.Desc})
}

func (d *NoteData) setField(k string, v any) bool {
	return k == "desc" && assignString(&d.Desc, v)
}

func (d *NoteData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// DecisionData is a decision point with its criteria.
type DecisionData struct {
	Common
	Criteria string
}

func (*DecisionData) Type() NodeType { return NodeDecision }

func (d *DecisionData) Fields() map[string]any {
	return nonEmpty(map[string]any{"criteria": d.Criteria})
}

func (d *DecisionData) setField(k string, v any) bool {
	return k == "criteria" && assignString(&d.Criteria, v)
}

func (d *DecisionData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// MilestoneData is a dated milestone.
type MilestoneData struct {
	Common
	Date string
}

func (*MilestoneData) Type() NodeType { return NodeMilestone }

func (d *MilestoneData) Fields() map[string]any {
	return nonEmpty(map[string]any{"date": d.Date})
}

func (d *MilestoneData) setField(k string, v any) bool {
	return k == "date" && assignString(&d.Date, v)
}

func (d *MilestoneData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// ServiceData describes a service or API endpoint.
type ServiceData struct {
	Common
	Method  string
	BaseURL string
}

func (*ServiceData) Type() NodeType { return NodeService }

func (d *ServiceData) Fields() map[string]any {
	return nonEmpty(map[string]any{"method": d.Method, "base_url": d.BaseURL})
}

func (d *ServiceData) setField(k string, v any) bool {
	switch k {
	case "method":
		return assignString(&d.Method, v)
	case "base_url", "baseUrl":
		return assignString(&d.BaseURL, v)
	}
	return false
}

func (d *ServiceData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// KPIData is an indicator with a numeric value.
type KPIData struct {
	Common
	Value float64
}

func (*KPIData) Type() NodeType { return NodeKPI }

// Percent returns Value clamped to [0, 100] for display.
func (d *KPIData) Percent() float64 {
	return max(0, min(100, d.Value))
}

func (d *KPIData) Fields() map[string]any {
	return map[string]any{"value": d.Value}
}

func (d *KPIData) setField(k string, v any) bool {
	if k != "value" {
		return false
	}
	f, ok := asFloat(v)
	if ok {
		d.Value = f
	}
	return ok
}

func (d *KPIData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// SwimlaneData groups nodes visually.
type SwimlaneData struct{ Common }

func (*SwimlaneData) Type() NodeType            { return NodeSwimlane }
func (*SwimlaneData) Fields() map[string]any    { return map[string]any{} }
func (*SwimlaneData) setField(string, any) bool { return false }
func (d *SwimlaneData) clone() NodeData         { return &SwimlaneData{Common: d.copyCommon()} }

// IdeaData is a bare idea.
type IdeaData struct{ Common }

func (*IdeaData) Type() NodeType            { return NodeIdea }
func (*IdeaData) Fields() map[string]any    { return map[string]any{} }
func (*IdeaData) setField(string, any) bool { return false }
func (d *IdeaData) clone() NodeData         { return &IdeaData{Common: d.copyCommon()} }

// TopicData is a topic heading.
type TopicData struct{ Common }

func (*TopicData) Type() NodeType            { return NodeTopic }
func (*TopicData) Fields() map[string]any    { return map[string]any{} }
func (*TopicData) setField(string, any) bool { return false }
func (d *TopicData) clone() NodeData         { return &TopicData{Common: d.copyCommon()} }

// Task statuses.
const (
	TaskTodo  = "todo"
	TaskDoing = "doing"
	TaskDone  = "done"
)

// TaskData is a task with a workflow status.
type TaskData struct {
	Common
	Status string
}

func (*TaskData) Type() NodeType { return NodeTask }

func (d *TaskData) Fields() map[string]any {
	return nonEmpty(map[string]any{"status": d.Status})
}

func (d *TaskData) setField(k string, v any) bool {
	return k == "status" && assignString(&d.Status, v)
}

func (d *TaskData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// RiskData is a risk with severity L, M or H.
type RiskData struct {
	Common
	Severity string
}

func (*RiskData) Type() NodeType { return NodeRisk }

func (d *RiskData) Fields() map[string]any {
	return nonEmpty(map[string]any{"severity": d.Severity})
}

func (d *RiskData) setField(k string, v any) bool {
	return k == "severity" && assignString(&d.Severity, v)
}

func (d *RiskData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// PersonaData is a stakeholder.
type PersonaData struct {
	Common
	Role string
	Org  string
}

func (*PersonaData) Type() NodeType { return NodePersona }

func (d *PersonaData) Fields() map[string]any {
	return nonEmpty(map[string]any{"role": d.Role, "org": d.Org})
}

func (d *PersonaData) setField(k string, v any) bool {
	switch k {
	case "role":
		return assignString(&d.Role, v)
	case "org":
		return assignString(&d.Org, v)
	}
	return false
}

func (d *PersonaData) clone() NodeData {
	c := *d
	c.Common = d.copyCommon()
	return &c
}

// NewData returns the default payload for t, labelled with the type's default label.
func NewData(t NodeType) NodeData {
	switch ParseNodeType(string(t)) {
	case NodeDecision:
		return &DecisionData{Common: Common{Text: "Decision?"}}
	case NodeMilestone:
		return &MilestoneData{Common: Common{Text: "Milestone"}}
	case NodeService:
		return &ServiceData{Common: Common{Text: "Service"}}
	case NodeKPI:
		return &KPIData{Common: Common{Text: "Indicator"}}
	case NodeSwimlane:
		return &SwimlaneData{Common: Common{Text: "Swimlane"}}
	case NodeIdea:
		return &IdeaData{Common: Common{Text: DefaultLabel}}
	case NodeTopic:
		return &TopicData{Common: Common{Text: "Topic"}}
	case NodeTask:
		return &TaskData{Common: Common{Text: "Task"}, Status: TaskTodo}
	case NodeRisk:
		return &RiskData{Common: Common{Text: "Risk"}, Severity: "M"}
	case NodePersona:
		return &PersonaData{Common: Common{Text: "Persona"}}
	default:
		return &NoteData{Common: Common{Text: DefaultLabel}}
	}
}

// CloneData returns a deep copy of d.
func CloneData(d NodeData) NodeData {
	if d == nil {
		return nil
	}
	return d.clone()
}

// DecodeData builds the typed payload from an open attribute bag. The type is
// read from bag["type"]; attributes the variant does not model are kept in
// Extra. "position" is skipped since it lives on the node.
func DecodeData(bag map[string]any) NodeData {
	t, _ := bag["type"].(string)
	d := NewData(ParseNodeType(t))
	c := d.common()
	for k, v := range bag {
		switch k {
		case "type", "position":
			continue
		case "label":
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				d.SetLabel(s)
			}
		default:
			if d.setField(k, v) {
				continue
			}
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[k] = cloneValue(v)
		}
	}
	return d
}

// EncodeData flattens d into an attribute bag including "label" and "type".
func EncodeData(d NodeData) map[string]any {
	out := cloneBag(d.common().Extra)
	if out == nil {
		out = make(map[string]any)
	}
	for k, v := range d.Fields() {
		out[k] = v
	}
	out["label"] = d.Label()
	out["type"] = string(d.Type())
	return out
}

func assignString(dst *string, v any) bool {
	s, ok := v.(string)
	if ok {
		*dst = s
	}
	return ok
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func nonEmpty(m map[string]any) map[string]any {
	for k, v := range m {
		if s, ok := v.(string); ok && s == "" {
			delete(m, k)
		}
	}
	return m
}

func cloneBag(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneBag(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	default:
		return v
	}
}

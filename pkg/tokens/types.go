// Package tokens sizes prompts and project context into approximate token
// budgets and shrinks context with named reduction strategies.
package tokens

import "time"

// Rule statuses.
const (
	StatusDraft    = "draft"
	StatusApproved = "approved"
	StatusArchived = "archived"
)

// BusinessRule is a project rule the assistant must respect.
type BusinessRule struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Condition   string   `json:"condition,omitempty"`
	Action      string   `json:"action,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// FlowSpec is one version of a flow specification.
type FlowSpec struct {
	ID        string    `json:"id,omitempty"`
	FlowID    string    `json:"flow_id,omitempty"`
	Name      string    `json:"name"`
	Version   int       `json:"version,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Content   string    `json:"content,omitempty"`
	Steps     []string  `json:"steps,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// RegistryItem is a reusable building block (screen, component, integration).
type RegistryItem struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Kind        string         `json:"kind,omitempty"`
	Description string         `json:"description,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// Persona describes a target user.
type Persona struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Role        string   `json:"role,omitempty"`
	Description string   `json:"description,omitempty"`
	Goals       []string `json:"goals,omitempty"`
	PainPoints  []string `json:"pain_points,omitempty"`
}

// ProductProfile summarizes the product being designed.
type ProductProfile struct {
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	Audience         string   `json:"audience,omitempty"`
	ValueProposition string   `json:"value_proposition,omitempty"`
	Features         []string `json:"features,omitempty"`
}

// Message is one turn of conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ProjectContext is everything the caller knows about the project.
type ProjectContext struct {
	BusinessRules  []BusinessRule  `json:"business_rules,omitempty"`
	FlowSpecs      []FlowSpec      `json:"flow_specs,omitempty"`
	RegistryItems  []RegistryItem  `json:"registry_items,omitempty"`
	Personas       []Persona       `json:"personas,omitempty"`
	ProductProfile *ProductProfile `json:"product_profile,omitempty"`
}

// Context is project context plus message history.
type Context struct {
	Project  ProjectContext `json:"project"`
	Messages []Message      `json:"messages,omitempty"`
}

// clone returns a copy whose slices can be modified without touching c.
func (c Context) clone() Context {
	out := Context{
		Project: ProjectContext{
			BusinessRules: append([]BusinessRule(nil), c.Project.BusinessRules...),
			FlowSpecs:     append([]FlowSpec(nil), c.Project.FlowSpecs...),
			RegistryItems: append([]RegistryItem(nil), c.Project.RegistryItems...),
			Personas:      append([]Persona(nil), c.Project.Personas...),
		},
		Messages: append([]Message(nil), c.Messages...),
	}
	if c.Project.ProductProfile != nil {
		p := *c.Project.ProductProfile
		out.Project.ProductProfile = &p
	}
	return out
}

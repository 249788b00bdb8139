package main

import (
	"time"

	"github.com/sigmaproc/sigmaproc/pipelines"
)

// API request and response models.

// CreateTenantRequest represents the request body for creating a tenant.
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// TenantResponse represents a tenant in API responses.
type TenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransformRequest represents the request body for transforming a rule.
// Rule holds a Sigma rule as a YAML document. When PipelineID is empty,
// all of the tenant's active pipelines are applied in priority order.
type TransformRequest struct {
	TenantID   string `json:"tenantId"`
	PipelineID string `json:"pipelineId,omitempty"`
	Rule       string `json:"rule"`
}

// PipelineOutcome describes what one pipeline did to the rule.
type PipelineOutcome struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Fields       []string `json:"fields,omitempty"`
	AppliedItems []string `json:"appliedItems,omitempty"`
}

// TransformResponse represents the response for a transform request.
// Rule is the transformed rule serialized back to YAML.
type TransformResponse struct {
	Rule          string            `json:"rule"`
	Pipelines     []PipelineOutcome `json:"pipelines"`
	TransformTime string            `json:"transformTime"`
}

// PipelineRequest represents the request body for creating or updating
// a pipeline. Definition holds the pipeline definition YAML; name and
// priority are taken from the definition itself.
type PipelineRequest struct {
	Definition string `json:"definition"`
	Active     bool   `json:"active"`
}

// PipelineResponse represents a pipeline in API responses.
type PipelineResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Priority   int       `json:"priority"`
	Definition string    `json:"definition"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func pipelineResponse(def *pipelines.Definition) PipelineResponse {
	return PipelineResponse{
		ID:         def.ID,
		Name:       def.Name,
		Priority:   def.Priority,
		Definition: def.Source,
		Active:     def.Active,
		CreatedAt:  def.CreatedAt,
		UpdatedAt:  def.UpdatedAt,
	}
}

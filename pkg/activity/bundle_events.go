package activity

import (
	"strings"
	"time"
)

const (
	VerbConfigProcessed    = "aws.config.processed"
	VerbServicesRegistered = "aws.services.registered"

	ObjectTypeConfig   = "aws.config"
	ObjectTypeServices = "aws.services"
)

// LayerContext describes one configuration layer that fed a load.
type LayerContext struct {
	Name   string
	Source string
	Keys   []string
}

// LoadEventInput carries the fields shared by load lifecycle events.
type LoadEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	LoadID     string
	Channel    string
	Metadata   map[string]any
	Layers     []LayerContext
	OccurredAt time.Time
}

// ConfigProcessedInput describes a successful validate and merge pass.
type ConfigProcessedInput struct {
	LoadEventInput
	MergePolicy string
	Keys        []string
	Services    []string
}

// ServicesRegisteredInput describes the registrations written by a load.
type ServicesRegisteredInput struct {
	LoadEventInput
	FactoryID string
	Services  map[string]string
}

// BuildConfigProcessedEvent records which keys and service overrides survived
// processing.
func BuildConfigProcessedEvent(input ConfigProcessedInput) Event {
	metadata := baseMetadata(input.LoadEventInput)
	if input.MergePolicy != "" {
		metadata["merge_policy"] = input.MergePolicy
	}
	metadata["keys"] = append([]string{}, input.Keys...)
	if len(input.Services) > 0 {
		metadata["services"] = append([]string{}, input.Services...)
	}
	return buildLoadEvent(VerbConfigProcessed, ObjectTypeConfig, input.LoadEventInput, metadata)
}

// BuildServicesRegisteredEvent records the registration ids keyed by alias.
func BuildServicesRegisteredEvent(input ServicesRegisteredInput) Event {
	metadata := baseMetadata(input.LoadEventInput)
	if input.FactoryID != "" {
		metadata["factory_id"] = input.FactoryID
	}
	services := make(map[string]any, len(input.Services))
	for id, class := range input.Services {
		services[id] = class
	}
	metadata["services"] = services
	metadata["count"] = len(input.Services)
	return buildLoadEvent(VerbServicesRegistered, ObjectTypeServices, input.LoadEventInput, metadata)
}

func baseMetadata(input LoadEventInput) map[string]any {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if len(input.Layers) > 0 {
		layers := make([]map[string]any, 0, len(input.Layers))
		for _, layer := range input.Layers {
			entry := map[string]any{"name": layer.Name}
			if layer.Source != "" {
				entry["source"] = layer.Source
			}
			if len(layer.Keys) > 0 {
				entry["keys"] = append([]string{}, layer.Keys...)
			}
			layers = append(layers, entry)
		}
		metadata["layers"] = layers
	}
	return metadata
}

func buildLoadEvent(verb, objectType string, input LoadEventInput, metadata map[string]any) Event {
	objectID := strings.TrimSpace(input.LoadID)
	if objectID == "" {
		objectID = objectType
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

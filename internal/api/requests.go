// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// HTTP request bodies with go-playground/validator tags. These structs
// validate incoming API parameters before they reach the engine or store.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/verdantlabs/actionrank/internal/persona"
	"github.com/verdantlabs/actionrank/internal/recommend"
)

// maxRequestBody bounds request body size to guard against oversized payloads.
const maxRequestBody = 1 << 20 // 1MB

// RecommendationsRequest is the request body for POST /api/v1/recommendations.
//
// Persona resolution order: inline persona, then inline archetype scores,
// then the persona stored for user_id. Candidates override the stored
// catalog when supplied.
type RecommendationsRequest struct {
	UserID     string               `json:"user_id"`
	Archetypes persona.Scores       `json:"archetypes" validate:"omitempty,dive,keys,archetype,endkeys,gte=0"`
	Persona    *persona.Vector      `json:"persona"`
	Flags      persona.ContextFlags `json:"flags"`
	Candidates []recommend.Action   `json:"candidates" validate:"omitempty,dive"`
	K          int                  `json:"k" validate:"gte=0"`
}

// ToEngineRequest converts the API request to an engine request.
func (req *RecommendationsRequest) ToEngineRequest() recommend.Request {
	return recommend.Request{
		UserID:     req.UserID,
		Archetypes: req.Archetypes,
		Persona:    req.Persona,
		Flags:      req.Flags,
		Candidates: req.Candidates,
		K:          req.K,
	}
}

// PersonaRequest is the request body for POST /api/v1/persona.
// When user_id is set, the mapped persona is persisted to the user's state.
type PersonaRequest struct {
	UserID     string         `json:"user_id"`
	Archetypes persona.Scores `json:"archetypes" validate:"required,dive,keys,archetype,endkeys,gte=0"`
	Interests  []string       `json:"interests" validate:"omitempty,max=100"`
}

// EventInput is a single interaction event in an EventsRequest.
type EventInput struct {
	ActionID  string    `json:"action_id" validate:"required"`
	Type      string    `json:"type" validate:"required,eventtype"`
	Timestamp time.Time `json:"timestamp"`
}

// EventsRequest is the request body for POST /api/v1/users/{userID}/events.
type EventsRequest struct {
	Events []EventInput `json:"events" validate:"required,min=1,max=500,dive"`
}

// ToEvents converts the request events to storage events.
func (req *EventsRequest) ToEvents() []recommend.Event {
	events := make([]recommend.Event, len(req.Events))
	for i, ev := range req.Events {
		events[i] = recommend.Event{
			ActionID:  ev.ActionID,
			Type:      recommend.EventType(ev.Type),
			Timestamp: ev.Timestamp,
		}
	}
	return events
}

// CatalogRequest is the request body for PUT /api/v1/catalog.
// The supplied actions replace the stored catalog atomically.
type CatalogRequest struct {
	Actions []recommend.Action `json:"actions" validate:"required,min=1,dive"`
}

// decodeJSON decodes a JSON request body into dst, rejecting oversized
// bodies and trailing garbage.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	// Reject a second JSON value in the body
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}

	return nil
}

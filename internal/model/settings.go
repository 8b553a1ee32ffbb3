// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

// =============================================================================
// PERSONA TYPE
// =============================================================================

// Persona selects the assistant's system instruction style.
type Persona string

const (
	PersonaFriendly     Persona = "friendly"
	PersonaProfessional Persona = "professional"
	PersonaTechnical    Persona = "technical"
	PersonaCreative     Persona = "creative"
)

// Valid reports whether the persona is one of the known values.
func (p Persona) Valid() bool {
	switch p {
	case PersonaFriendly, PersonaProfessional, PersonaTechnical, PersonaCreative:
		return true
	}
	return false
}

// String returns the string representation of the persona.
func (p Persona) String() string {
	return string(p)
}

// =============================================================================
// SETTINGS TYPE
// =============================================================================

// Settings holds the process-wide chat preferences. They are loaded from the
// local cache at startup, persisted on every change, and injected into the
// backend session whenever they change.
type Settings struct {
	Persona       Persona `json:"persona"`
	SearchEnabled bool    `json:"search_enabled"`
	DisplayName   string  `json:"display_name"`
}

// DefaultSettings returns the settings used before the user has saved any.
func DefaultSettings() Settings {
	return Settings{
		Persona:       PersonaFriendly,
		SearchEnabled: false,
		DisplayName:   "User",
	}
}

// Normalize replaces invalid fields with their defaults.
func (s Settings) Normalize() Settings {
	if !s.Persona.Valid() {
		s.Persona = PersonaFriendly
	}
	if s.DisplayName == "" {
		s.DisplayName = "User"
	}
	return s
}

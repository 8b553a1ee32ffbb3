// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the aura TUI.
//
// All colors use Lip Gloss AdaptiveColor so the palette adjusts to light
// and dark terminals automatically. The Theme struct bundles every styled
// component; views take a *Theme and never construct ad-hoc styles.
package styles

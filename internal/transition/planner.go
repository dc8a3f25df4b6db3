/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transition decides what the station says between two pieces of
// content. Most boundaries use canned sentence sets; music-to-music and
// unusual pairings go through the text generator.
package transition

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_station/internal/station"
)

// Generator produces transition text from a system context and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Persona carries the station identity woven into generated transitions.
type Persona struct {
	StationName string
	DJName      string
	Vibe        string
	Context     string
	BasePrompt  string
	FunnyPrompt string
	FunnyRate   float64
}

// Endpoint is one side of a boundary.
type Endpoint struct {
	Category station.Category
	Meta     station.Metadata
}

// Planner maps a (previous, next) boundary to spoken transition text.
type Planner struct {
	gen     Generator
	persona Persona
	rng     *rand.Rand
	logger  zerolog.Logger
}

// New creates a planner. gen may be nil, in which case generated rules fall
// straight through to the fallback template.
func New(gen Generator, persona Persona, logger zerolog.Logger) *Planner {
	return &Planner{
		gen:     gen,
		persona: persona,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:  logger.With().Str("component", "transition").Logger(),
	}
}

var adTransitions = []string{
	"And now a word from our sponsors.",
	"We'll be right back after these messages.",
	"Let's take a quick break to hear from our partners.",
	"Stay tuned for more after this brief message.",
	"A moment of your time for our sponsors, please.",
}

var fromAdTransitions = []string{
	"And we're back with more great music on %s.",
	"Thanks for your patience. Now back to the hits.",
	"And now, back to our regularly scheduled programming.",
	"Let's get back to what you came for - more great tunes.",
	"That's enough talk. Back to the music!",
}

var djToMusicTransitions = []string{
	"Here's %[2]s.",
	"Let's kick things up with %[2]s.",
	"Time for some music. This is %[2]s.",
	"You're listening to %[1]s, and this is %[2]s.",
	"Let's get back to the music with %[2]s.",
}

var podcastOutroTransitions = []string{
	"Hope you enjoyed that feature. Now, let's get back to more great content.",
	"That was an interesting discussion. Let's continue with our programming.",
	"Thanks for tuning in to that special segment.",
	"That's all for today's feature. Let's move on.",
	"And that concludes our special program. Now, back to more music.",
}

var podcastIntroTransitions = []string{
	"And now, a special feature from our studios.",
	"Coming up next, we have a fascinating segment for you.",
	"It's time for our special program.",
	"Let's take a few minutes for something different.",
	"And now for something a little different.",
}

// Plan returns the transition text for a boundary. It never fails: generator
// errors degrade to a fixed template, and silent boundaries return "".
func (p *Planner) Plan(ctx context.Context, prev, next Endpoint) string {
	prevTitle := displayTitle(prev.Meta, "previous track")
	nextTitle := displayTitle(next.Meta, "upcoming content")

	// Station start: plain intro, no generator involved.
	if prev.Category == station.CategoryStart || prevTitle == "" {
		if next.Meta.Artist != "" {
			return fmt.Sprintf("Up next, %s by %s.", nextTitle, next.Meta.Artist)
		}
		return fmt.Sprintf("Up next, %s.", nextTitle)
	}

	if next.Category == station.CategoryAd {
		return p.pick(adTransitions)
	}

	if prev.Category == station.CategoryAd {
		s := p.pick(fromAdTransitions)
		if strings.Contains(s, "%s") {
			return fmt.Sprintf(s, p.persona.StationName)
		}
		return s
	}

	// Station identifications speak for themselves.
	if prev.Category.IsStationID() || next.Category.IsStationID() {
		return ""
	}

	if prev.Category == station.CategoryDJ && next.Category == station.CategoryMusic {
		return fmt.Sprintf(p.pick(djToMusicTransitions), p.persona.StationName, nextTitle)
	}

	if prev.Category == station.CategoryMusic && next.Category == station.CategoryMusic {
		return p.generate(ctx, prev, next, prevTitle, nextTitle)
	}

	if prev.Category == station.CategoryPodcast {
		return p.pick(podcastOutroTransitions)
	}

	if next.Category == station.CategoryPodcast {
		return p.pick(podcastIntroTransitions)
	}

	return p.generate(ctx, prev, next, prevTitle, nextTitle)
}

func (p *Planner) pick(set []string) string {
	return set[p.rng.Intn(len(set))]
}

func (p *Planner) generate(ctx context.Context, prev, next Endpoint, prevTitle, nextTitle string) string {
	if p.gen == nil {
		return p.fallback(prevTitle)
	}

	funny := p.rng.Float64() < p.persona.FunnyRate
	system := fmt.Sprintf("%s. The station, '%s', has the vibe of %q. DJ Name: '%s'.",
		p.persona.Context, p.persona.StationName, p.persona.Vibe, p.persona.DJName)

	text, err := p.gen.Generate(ctx, system, p.buildPrompt(prev, next, prevTitle, nextTitle, funny))
	if err != nil {
		p.logger.Warn().Err(err).
			Str("prev", prevTitle).
			Str("next", nextTitle).
			Msg("transition generation failed, using fallback")
		return p.fallback(prevTitle)
	}
	return text
}

func (p *Planner) fallback(prevTitle string) string {
	return fmt.Sprintf("And that was %s. Coming up next on %s!", prevTitle, p.persona.StationName)
}

func (p *Planner) buildPrompt(prev, next Endpoint, prevTitle, nextTitle string, funny bool) string {
	var b strings.Builder
	b.WriteString("You are a lively and enthusiastic DJ.\n\n")
	b.WriteString("Previous song:\n")
	writeTrackLines(&b, prevTitle, prev.Meta)
	b.WriteString("\nNext song:\n")
	writeTrackLines(&b, nextTitle, next.Meta)
	b.WriteString("\nTask:\n")
	b.WriteString("Create a short, natural DJ-style transition from the previous track to the next.\n")
	b.WriteString("Mention the names of both songs and artists.\n")
	b.WriteString("Only use the extra details (album, genre, notes) if they help make the transition smoother or funnier.\n\n")

	basePrompt := p.persona.BasePrompt
	if basePrompt == "" {
		basePrompt = "Write a smooth segway."
	}
	b.WriteString(basePrompt)
	if funny && p.persona.FunnyPrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(p.persona.FunnyPrompt)
	}

	b.WriteString("\n\nRespond only with the DJ's spoken words. Limit to 1-2 sentences. Be natural and entertaining.")
	return b.String()
}

func writeTrackLines(b *strings.Builder, title string, meta station.Metadata) {
	fmt.Fprintf(b, "- Title: %q\n", title)
	if meta.Artist != "" {
		fmt.Fprintf(b, "- Artist: %s\n", meta.Artist)
	}
	if meta.Album != "" {
		fmt.Fprintf(b, "- Album: %s\n", meta.Album)
	}
	if meta.Genre != "" {
		fmt.Fprintf(b, "- Genre: %s\n", meta.Genre)
	}
	if meta.Comment != "" {
		fmt.Fprintf(b, "- Note: %s\n", meta.Comment)
	}
}

func displayTitle(meta station.Metadata, placeholder string) string {
	if meta.Title != "" {
		return meta.Title
	}
	if meta.Filename != "" {
		return strings.TrimSuffix(meta.Filename, filepath.Ext(meta.Filename))
	}
	return placeholder
}

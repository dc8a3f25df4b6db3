/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package station holds the content vocabulary shared by the scheduler,
// selector, planner, and history store.
package station

import "fmt"

// Category is a content type slot in the repeating schedule.
type Category string

const (
	CategoryMusic      Category = "music"
	CategoryAd         Category = "ad"
	CategoryDJ         Category = "dj"
	CategoryIntro      Category = "intro"
	CategoryStationID  Category = "id"
	CategoryPodcast    Category = "podcast"
	CategoryTransition Category = "segway"

	// CategoryStart is a sentinel for "no previous item this run". It never
	// appears in a schedule pattern or the play log.
	CategoryStart Category = "start"

	// CategoryPlaceholder marks the synthetic entry seeded into an empty
	// history cache so fairness logic never sees an empty collection.
	CategoryPlaceholder Category = "placeholder"
)

// scheduleCategories is the closed set allowed in a schedule pattern.
var scheduleCategories = map[Category]struct{}{
	CategoryMusic:      {},
	CategoryAd:         {},
	CategoryDJ:         {},
	CategoryIntro:      {},
	CategoryStationID:  {},
	CategoryPodcast:    {},
	CategoryTransition: {},
}

// ParseCategory validates a pattern element from configuration.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if _, ok := scheduleCategories[c]; !ok {
		return "", fmt.Errorf("unknown schedule category %q", s)
	}
	return c, nil
}

// IsTransition reports whether the slot produces a spoken transition rather
// than content from a ready pool.
func (c Category) IsTransition() bool { return c == CategoryTransition }

// IsStationID reports whether the category is a station identification or
// intro boundary, which never gets transition audio around it.
func (c Category) IsStationID() bool {
	return c == CategoryIntro || c == CategoryStationID
}

func (c Category) String() string { return string(c) }

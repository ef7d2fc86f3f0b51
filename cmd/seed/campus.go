package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/campusguard/argus/internal/domain"
)

var (
	firstNames = []string{"Dana", "Lee", "Sam", "Priya", "Jonas", "Mei", "Omar", "Ines", "Tomas", "Aisha", "Kofi", "Rita"}
	lastNames  = []string{"Ruiz", "Park", "Okafor", "Novak", "Haddad", "Lindqvist", "Chen", "Moreau", "Silva", "Kowalski"}

	departments = []struct {
		name   string
		domain string
	}{
		{"Computer Engineering", "eng.campus.edu"},
		{"Mechanical Engineering", "eng.campus.edu"},
		{"Physics", "sci.campus.edu"},
		{"Biology", "sci.campus.edu"},
		{"History", "arts.campus.edu"},
		{"", "campus.edu"},
	}

	sourceLocations = map[domain.Source][]string{
		domain.SourceSwipe:      {"GATE-NORTH", "GATE-SOUTH", "LIB-ENTRANCE", "LAB-101", "LAB-204", "DORM-A"},
		domain.SourceWiFi:       {"AP-LIB-1", "AP-LIB-2", "AP-CAFE", "AP-LAB-101", "AP-HALL-3"},
		domain.SourceLabBooking: {"LAB-101", "LAB-204", "LAB-CHEM"},
		domain.SourceLibrary:    {"library"},
		domain.SourceCCTV:       {"CAM-GATE-N", "CAM-CAFE", "CAM-LIB", "CAM-PARKING"},
	}

	noteTexts = []string{
		"Left a bag at the front desk",
		"Asked about after-hours lab access",
		"Seen near the loading dock",
		"Reported a lost student card",
	}
)

// Campus is a synthetic population with per-source activity.
type Campus struct {
	Profiles   []*domain.Profile
	Activities []*domain.ActivityRecord
}

// CampusOptions control synthetic generation.
type CampusOptions struct {
	Entities int
	Days     int
	Seed     uint64
	Now      time.Time

	// SilentRatio is the share of entities with no activity at all.
	SilentRatio float64
}

// GenerateCampus builds a deterministic campus for a given seed.
func GenerateCampus(opts CampusOptions) *Campus {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	now := opts.Now.UTC()
	campus := &Campus{}

	for i := 0; i < opts.Entities; i++ {
		p := newProfile(rng, i)
		campus.Profiles = append(campus.Profiles, p)

		if rng.Float64() < opts.SilentRatio {
			continue
		}
		campus.Activities = append(campus.Activities, activityFor(rng, p, opts.Days, now)...)
	}
	return campus
}

func newProfile(rng *rand.Rand, i int) *domain.Profile {
	first := firstNames[rng.IntN(len(firstNames))]
	last := lastNames[rng.IntN(len(lastNames))]
	dept := departments[rng.IntN(len(departments))]

	id := fmt.Sprintf("E%04d", i+1)
	sum := sha256.Sum256([]byte("device:" + id))

	p := &domain.Profile{
		EntityID:   id,
		Name:       first + " " + last,
		Role:       "student",
		Department: dept.name,
		CardID:     fmt.Sprintf("C%05d", 10000+i),
		DeviceHash: hex.EncodeToString(sum[:]),
		StudentID:  fmt.Sprintf("S%06d", 200000+i),
		Email:      fmt.Sprintf("%s.%s%d@%s", strings.ToLower(first), strings.ToLower(last), i, dept.domain),
	}
	if i%7 == 0 {
		p.Role = "staff"
		p.StudentID = ""
	}
	if rng.IntN(3) > 0 {
		p.FaceID = fmt.Sprintf("F%05d", 50000+i)
	}
	return p
}

// activityFor walks each day and emits a handful of observations during
// waking hours, biased towards a few favourite locations.
func activityFor(rng *rand.Rand, p *domain.Profile, days int, now time.Time) []*domain.ActivityRecord {
	var out []*domain.ActivityRecord
	startHour := 7 + rng.IntN(4)

	for d := days; d >= 0; d-- {
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -d)
		events := 2 + rng.IntN(5)

		for e := 0; e < events; e++ {
			at := day.Add(time.Duration(startHour+rng.IntN(12))*time.Hour + time.Duration(rng.IntN(60))*time.Minute)
			if at.After(now) {
				continue
			}
			out = append(out, observation(rng, p, at))
		}

		if rng.IntN(10) == 0 {
			at := day.Add(time.Duration(9+rng.IntN(8)) * time.Hour)
			if at.After(now) {
				continue
			}
			out = append(out, &domain.ActivityRecord{
				EntityID:  p.EntityID,
				Source:    domain.SourceNote,
				Text:      noteTexts[rng.IntN(len(noteTexts))],
				Timestamp: at,
			})
		}
	}
	return out
}

func observation(rng *rand.Rand, p *domain.Profile, at time.Time) *domain.ActivityRecord {
	sources := []domain.Source{domain.SourceSwipe, domain.SourceSwipe, domain.SourceWiFi, domain.SourceLabBooking, domain.SourceLibrary}
	if p.FaceID != "" {
		sources = append(sources, domain.SourceCCTV)
	}
	src := sources[rng.IntN(len(sources))]
	locs := sourceLocations[src]

	rec := &domain.ActivityRecord{
		EntityID:  p.EntityID,
		Source:    src,
		Location:  locs[rng.IntN(len(locs))],
		Timestamp: at,
	}
	switch src {
	case domain.SourceSwipe:
		rec.Identifier = p.CardID
	case domain.SourceWiFi:
		rec.Identifier = p.DeviceHash
	case domain.SourceCCTV:
		rec.Identifier = p.FaceID
	}
	return rec
}

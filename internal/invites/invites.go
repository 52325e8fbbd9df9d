// Package invites loads the read-only invite list: which groups exist, who
// is in them, and which events they are invited to.
//
// The list lives in a YAML file and is cached with a TTL so a running
// process picks up edits without a restart. Lookups never mutate RSVP state.
package invites

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/search"
	"gopkg.in/yaml.v3"

	"github.com/weddingtools/rsvpd/internal/domain"
)

// searchLimit bounds search results.
const searchLimit = 25

// PersonHit is one search result: a person plus their group context.
type PersonHit struct {
	PersonID   string
	FullName   string
	GroupID    string
	GroupLabel string
}

// Clock abstracts wall time for cache expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Source reads and caches the invite file.
type Source struct {
	path  string
	ttl   time.Duration
	clock Clock

	mu         sync.Mutex
	cacheUntil time.Time
	groupsByID map[string]domain.GroupDefinition
	groupIDs   []string
	people     []PersonHit
}

// New creates a source over the YAML file at path, cached for ttl.
// A ttl below five seconds is raised to five seconds.
func New(path string, ttl time.Duration) *Source {
	return NewWithClock(path, ttl, systemClock{})
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(path string, ttl time.Duration, clock Clock) *Source {
	if ttl < 5*time.Second {
		ttl = 5 * time.Second
	}
	return &Source{path: path, ttl: ttl, clock: clock}
}

// inviteFile is the YAML wire format.
type inviteFile struct {
	SchemaVersion int           `yaml:"schemaVersion"`
	Groups        []inviteGroup `yaml:"groups"`
}

type inviteGroup struct {
	GroupID   string         `yaml:"groupId"`
	Label     string         `yaml:"label"`
	InvitedTo []string       `yaml:"invitedTo"`
	Members   []invitePerson `yaml:"members"`
}

type invitePerson struct {
	PersonID string `yaml:"personId"`
	FullName string `yaml:"fullName"`
}

// GetGroup returns the definition for groupID, and whether it exists.
func (s *Source) GetGroup(groupID string) (domain.GroupDefinition, bool, error) {
	if groupID == "" {
		return domain.GroupDefinition{}, false, nil
	}
	if err := s.ensureLoaded(); err != nil {
		return domain.GroupDefinition{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groupsByID[groupID]
	return g, ok, nil
}

// AllGroups returns every group definition, ordered by group id.
func (s *Source) AllGroups() ([]domain.GroupDefinition, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := make([]domain.GroupDefinition, 0, len(s.groupIDs))
	for _, id := range s.groupIDs {
		groups = append(groups, s.groupsByID[id])
	}
	return groups, nil
}

// Search finds people whose full name contains the query, ignoring case and
// diacritics, sorted by name and bounded to a small result set. An empty
// query returns no hits.
func (s *Source) Search(query string) ([]PersonHit, error) {
	if query == "" {
		return nil, nil
	}
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	matcher := search.New(language.Und, search.IgnoreCase, search.IgnoreDiacritics)
	pattern := matcher.CompileString(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	var hits []PersonHit
	for _, p := range s.people {
		if start, _ := pattern.IndexString(p.FullName); start >= 0 {
			hits = append(hits, p)
			if len(hits) >= searchLimit {
				break
			}
		}
	}
	return hits, nil
}

// ensureLoaded re-reads the file when the cache has expired.
func (s *Source) ensureLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.groupsByID != nil && now.Before(s.cacheUntil) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read invites file: %w", err)
	}

	var file inviteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse invites file: %w", err)
	}

	groupsByID := make(map[string]domain.GroupDefinition, len(file.Groups))
	var people []PersonHit
	for _, g := range file.Groups {
		if g.GroupID == "" {
			return fmt.Errorf("invites file: group without groupId")
		}
		invited := make([]domain.EventKind, 0, len(g.InvitedTo))
		for _, kind := range g.InvitedTo {
			invited = append(invited, domain.EventKind(kind))
		}
		members := make([]domain.PersonDefinition, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, domain.PersonDefinition{PersonID: m.PersonID, FullName: m.FullName})
			people = append(people, PersonHit{
				PersonID:   m.PersonID,
				FullName:   m.FullName,
				GroupID:    g.GroupID,
				GroupLabel: g.Label,
			})
		}
		groupsByID[g.GroupID] = domain.GroupDefinition{
			GroupID:   g.GroupID,
			Label:     g.Label,
			InvitedTo: invited,
			Members:   members,
		}
	}

	sort.Slice(people, func(i, j int) bool { return people[i].FullName < people[j].FullName })
	groupIDs := make([]string, 0, len(groupsByID))
	for id := range groupsByID {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	s.groupsByID = groupsByID
	s.groupIDs = groupIDs
	s.people = people
	s.cacheUntil = now.Add(s.ttl)
	return nil
}

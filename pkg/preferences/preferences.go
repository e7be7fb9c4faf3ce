// Package preferences stores the user's local records: pinned servers and DMs, DM
// nicknames, bookmarks and pinned links. Records live in the same key-value store as the
// cache and are independent of the live session.
package preferences

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/small-frappuccino/discorddeck/pkg/discord/deeplink"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/errutil"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
)

// Store keys.
const (
	KeyPinnedServers = "pinnedServers"
	KeyPinnedDMs     = "pinnedDMs"
	KeyDMNicknames   = "dmNicknames"
	KeyBookmarks     = "discordBookmarks"
	KeyPinnedLinks   = "pinnedLinks"
)

const untitled = "Untitled"

// Bookmark is a named deep-link shortcut.
type Bookmark struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Link   string          `json:"link"`
	Tags   []string        `json:"tags"`
	Target deeplink.Target `json:"target,omitzero"`
}

// PinnedLink is a bookmark that also records what kind of place it opens.
type PinnedLink struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Type   deeplink.Kind   `json:"type"`
	Link   string          `json:"link"`
	Tags   []string        `json:"tags"`
	Target deeplink.Target `json:"target,omitzero"`
}

// Store reads and writes preference records. Read-modify-write cycles are serialized.
type Store struct {
	kv storage.KV
	mu sync.Mutex
}

func New(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// --- Pinned servers and DMs ---

func (s *Store) PinnedServers(ctx context.Context) []string {
	return readOr(ctx, s.kv, KeyPinnedServers, []string{})
}

func (s *Store) PinnedDMs(ctx context.Context) []string {
	return readOr(ctx, s.kv, KeyPinnedDMs, []string{})
}

// PinServer appends id to the pinned servers. Pinning twice is a no-op.
func (s *Store) PinServer(ctx context.Context, id string) (bool, error) {
	return s.pin(ctx, KeyPinnedServers, id)
}

func (s *Store) UnpinServer(ctx context.Context, id string) (bool, error) {
	return s.unpin(ctx, KeyPinnedServers, id)
}

func (s *Store) PinDM(ctx context.Context, id string) (bool, error) {
	return s.pin(ctx, KeyPinnedDMs, id)
}

func (s *Store) UnpinDM(ctx context.Context, id string) (bool, error) {
	return s.unpin(ctx, KeyPinnedDMs, id)
}

func (s *Store) pin(ctx context.Context, key, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, &errors.ServiceError{Category: errors.CategoryValidation, Component: "preferences", Operation: "pin", Key: key}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := readOr(ctx, s.kv, key, []string{})
	if slices.Contains(ids, id) {
		return false, nil
	}
	return true, s.write(ctx, key, append(ids, id))
}

func (s *Store) unpin(ctx context.Context, key, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := readOr(ctx, s.kv, key, []string{})
	next := slices.DeleteFunc(slices.Clone(ids), func(v string) bool { return v == id })
	if len(next) == len(ids) {
		return false, nil
	}
	return true, s.write(ctx, key, next)
}

// --- DM nicknames ---

func (s *Store) Nicknames(ctx context.Context) map[string]string {
	return s.nicknamesLocked(ctx)
}

func (s *Store) nicknamesLocked(ctx context.Context) map[string]string {
	m := readOr(ctx, s.kv, KeyDMNicknames, map[string]string{})
	if m == nil {
		m = map[string]string{}
	}
	return m
}

// SetNickname assigns a label to a DM. An empty nickname removes it.
func (s *Store) SetNickname(ctx context.Context, dmID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		_, err := s.RemoveNickname(ctx, dmID)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.nicknamesLocked(ctx)
	if m[dmID] == nickname {
		return nil
	}
	m[dmID] = nickname
	return s.write(ctx, KeyDMNicknames, m)
}

func (s *Store) RemoveNickname(ctx context.Context, dmID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.nicknamesLocked(ctx)
	if _, ok := m[dmID]; !ok {
		return false, nil
	}
	delete(m, dmID)
	return true, s.write(ctx, KeyDMNicknames, m)
}

// DisplayName returns the nickname for id when set, else fallback.
func DisplayName(nicknames map[string]string, id, fallback string) string {
	if n := strings.TrimSpace(nicknames[id]); n != "" {
		return n
	}
	return fallback
}

// PinnedFirst returns items with pinned ids first. Each group keeps its input order.
func PinnedFirst[T any](items []T, id func(T) string, pinned []string) []T {
	out := make([]T, 0, len(items))
	var rest []T
	for _, it := range items {
		if slices.Contains(pinned, id(it)) {
			out = append(out, it)
		} else {
			rest = append(rest, it)
		}
	}
	return append(out, rest...)
}

// --- Bookmarks ---

func (s *Store) Bookmarks(ctx context.Context) []Bookmark {
	return readOr(ctx, s.kv, KeyBookmarks, []Bookmark{})
}

// SaveBookmark adds b, or replaces the bookmark with the same id. A missing id is
// generated; a missing link is built from the target.
func (s *Store) SaveBookmark(ctx context.Context, b Bookmark) (Bookmark, error) {
	link, err := resolveLink(b.Link, b.Target)
	if err != nil {
		return Bookmark{}, err
	}
	b.Link = link
	b.Name = nameOrUntitled(b.Name)
	b.Tags = cleanTags(b.Tags)
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := readOr(ctx, s.kv, KeyBookmarks, []Bookmark{})
	list = upsert(list, b, func(x Bookmark) string { return x.ID })
	return b, s.write(ctx, KeyBookmarks, list)
}

func (s *Store) RemoveBookmark(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := readOr(ctx, s.kv, KeyBookmarks, []Bookmark{})
	next, ok := removeByID(list, id, func(x Bookmark) string { return x.ID })
	if !ok {
		return errors.ErrNotFound
	}
	return s.write(ctx, KeyBookmarks, next)
}

// --- Pinned links ---

func (s *Store) PinnedLinks(ctx context.Context) []PinnedLink {
	return readOr(ctx, s.kv, KeyPinnedLinks, []PinnedLink{})
}

// SavePinnedLink adds or replaces p. Type defaults to the kind of its target, or channel.
func (s *Store) SavePinnedLink(ctx context.Context, p PinnedLink) (PinnedLink, error) {
	link, err := resolveLink(p.Link, p.Target)
	if err != nil {
		return PinnedLink{}, err
	}
	p.Link = link
	p.Name = nameOrUntitled(p.Name)
	p.Tags = cleanTags(p.Tags)
	if p.Type == "" {
		p.Type = deeplink.KindChannel
		if !p.Target.IsZero() {
			p.Type = p.Target.Kind()
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := readOr(ctx, s.kv, KeyPinnedLinks, []PinnedLink{})
	list = upsert(list, p, func(x PinnedLink) string { return x.ID })
	return p, s.write(ctx, KeyPinnedLinks, list)
}

func (s *Store) RemovePinnedLink(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := readOr(ctx, s.kv, KeyPinnedLinks, []PinnedLink{})
	next, ok := removeByID(list, id, func(x PinnedLink) string { return x.ID })
	if !ok {
		return errors.ErrNotFound
	}
	return s.write(ctx, KeyPinnedLinks, next)
}

// ParseTags splits a comma-separated tag list, dropping blanks.
func ParseTags(s string) []string {
	return cleanTags(strings.Split(s, ","))
}

func resolveLink(link string, target deeplink.Target) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" && !target.IsZero() {
		built, err := target.Link()
		if err != nil {
			return "", &errors.ServiceError{Category: errors.CategoryValidation, Component: "preferences", Operation: "build_link", Cause: err}
		}
		link = built
	}
	if !deeplink.IsDeepLink(link) {
		return "", &errors.ServiceError{
			Category:  errors.CategoryValidation,
			Component: "preferences",
			Operation: "validate_link",
			Key:       link,
			Cause:     errors.ErrInvalidLink,
		}
	}
	return link, nil
}

func nameOrUntitled(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return untitled
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func upsert[T any](list []T, v T, id func(T) string) []T {
	for i := range list {
		if id(list[i]) == id(v) {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func removeByID[T any](list []T, target string, id func(T) string) ([]T, bool) {
	next := slices.DeleteFunc(slices.Clone(list), func(v T) bool { return id(v) == target })
	return next, len(next) != len(list)
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewStoreError("preferences", "encode", key, err)
	}
	return errutil.HandleStoreError("set", key, func() error {
		return s.kv.Set(ctx, key, string(data))
	})
}

// readOr decodes key into a value of fallback's type, returning fallback on a miss or
// an unreadable record.
func readOr[T any](ctx context.Context, kv storage.KV, key string, fallback T) T {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		log.DatabaseLogger().Warn("Preference read failed", "key", key, "error", err)
		return fallback
	}
	if !ok {
		return fallback
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		log.DatabaseLogger().Warn("Discarding unreadable preference record", "key", key, "error", err)
		return fallback
	}
	return v
}

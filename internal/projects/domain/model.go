package domain

import (
	"encoding/json"
	"time"
)

// Project is a named collection of text files plus metadata.
// It is storage-agnostic and used across repository, service and HTTP layers.
type Project struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Files     map[string]string `json:"files"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Metadata  Metadata          `json:"metadata"`
}

// Summary is the list view of a Project, without file contents.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Metadata  Metadata  `json:"metadata"`
}

func (p *Project) Summary() Summary {
	return Summary{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Metadata:  p.Metadata.Clone(),
	}
}

// Clone returns a deep copy that shares no maps or slices with p.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Files = CloneFiles(p.Files)
	cp.Metadata = p.Metadata.Clone()
	return &cp
}

// CreateInput carries the caller-supplied fields of a new project.
type CreateInput struct {
	Name     string
	Files    map[string]string
	Metadata Metadata
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	Name     *string
	Files    *map[string]string
	Metadata *Metadata
}

// NewProject builds a fully-defaulted project stamped at now.
func NewProject(id string, in CreateInput, now time.Time) *Project {
	now = Stamp(now)
	return &Project{
		ID:        id,
		Name:      in.Name,
		Files:     CloneFiles(in.Files),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  in.Metadata.Normalize(),
	}
}

// Apply merges u into p and moves UpdatedAt forward.
func (p *Project) Apply(u UpdateInput, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Files != nil {
		p.Files = CloneFiles(*u.Files)
	}
	if u.Metadata != nil {
		p.Metadata = u.Metadata.Normalize()
	}
	p.UpdatedAt = Touch(p.UpdatedAt, now)
}

// Stamp strips the monotonic reading and truncates to microseconds, the
// precision PostgreSQL keeps for timestamptz.
func Stamp(t time.Time) time.Time {
	return t.UTC().Round(0).Truncate(time.Microsecond)
}

// Touch returns the new updatedAt for a record last updated at prev.
// The result is always strictly after prev.
func Touch(prev, now time.Time) time.Time {
	now = Stamp(now)
	if !now.After(prev) {
		return Stamp(prev).Add(time.Microsecond)
	}
	return now
}

func CloneFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = v
	}
	return out
}

// Metadata holds the known project descriptors plus an open set of extra
// caller keys. On the wire the extra keys sit next to the known ones.
type Metadata struct {
	Description string
	Tags        []string
	IsPublic    bool
	Extra       map[string]any
}

const (
	metaDescription = "description"
	metaTags        = "tags"
	metaIsPublic    = "isPublic"
)

// Normalize fills defaults and drops duplicate tags, keeping first-seen order.
func (m Metadata) Normalize() Metadata {
	out := Metadata{
		Description: m.Description,
		IsPublic:    m.IsPublic,
		Tags:        make([]string, 0, len(m.Tags)),
	}
	seen := make(map[string]struct{}, len(m.Tags))
	for _, t := range m.Tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out.Tags = append(out.Tags, t)
	}
	for k, v := range m.Extra {
		if isKnownMetaKey(k) {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]any, len(m.Extra))
		}
		out.Extra[k] = cloneValue(v)
	}
	return out
}

func (m Metadata) Clone() Metadata {
	out := m
	if m.Tags != nil {
		out.Tags = make([]string, len(m.Tags))
		copy(out.Tags, m.Tags)
	}
	if m.Extra != nil {
		out.Extra = make(map[string]any, len(m.Extra))
		for k, v := range m.Extra {
			out.Extra[k] = cloneValue(v)
		}
	}
	return out
}

// cloneValue deep-copies the JSON shapes an extra metadata value can take.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	out[metaDescription] = m.Description
	out[metaTags] = tags
	out[metaIsPublic] = m.IsPublic
	return json.Marshal(out)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Metadata
	for k, v := range raw {
		switch k {
		case metaDescription:
			if err := unmarshalNullable(v, &out.Description); err != nil {
				return err
			}
		case metaTags:
			if err := unmarshalNullable(v, &out.Tags); err != nil {
				return err
			}
		case metaIsPublic:
			if err := unmarshalNullable(v, &out.IsPublic); err != nil {
				return err
			}
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			out.Extra[k] = val
		}
	}
	*m = out
	return nil
}

func unmarshalNullable(data json.RawMessage, dst any) error {
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func isKnownMetaKey(k string) bool {
	return k == metaDescription || k == metaTags || k == metaIsPublic
}

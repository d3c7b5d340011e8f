package domain

import "time"

// ItemState is the lifecycle state of a queue item.
type ItemState string

const (
	ItemStateDraft         ItemState = "draft"
	ItemStatePendingReview ItemState = "pending_review"
	ItemStateReady         ItemState = "ready"
	ItemStatePosted        ItemState = "posted"
	ItemStateFailed        ItemState = "failed"
	// ItemStateApproved is the terminal state of a trial candidate accepted by review.
	ItemStateApproved ItemState = "approved"
	// ItemStateReworked marks an archived trial candidate whose slot will be regenerated.
	ItemStateReworked ItemState = "reworked"
)

// IsValid checks if the state is a known value.
func (s ItemState) IsValid() bool {
	switch s {
	case ItemStateDraft, ItemStatePendingReview, ItemStateReady,
		ItemStatePosted, ItemStateFailed, ItemStateApproved, ItemStateReworked:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s ItemState) IsTerminal() bool {
	return s == ItemStatePosted || s == ItemStateApproved || s == ItemStateReworked
}

// IsPublishable reports whether an operator may trigger a publish attempt.
func (s ItemState) IsPublishable() bool {
	return s == ItemStateReady || s == ItemStateFailed
}

// IsDeletable reports whether an operator may delete the item.
func (s ItemState) IsDeletable() bool {
	return s == ItemStateDraft || s == ItemStateReady || s == ItemStateFailed
}

// ItemKind is the content type of a queue item.
type ItemKind string

const (
	ItemKindPost           ItemKind = "post"
	ItemKindReply          ItemKind = "reply"
	ItemKindComment        ItemKind = "comment"
	ItemKindEngagement     ItemKind = "engagement"
	ItemKindPodcastEpisode ItemKind = "podcast_episode"
)

// IsValid checks if the kind is a known value.
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemKindPost, ItemKindReply, ItemKindComment, ItemKindEngagement, ItemKindPodcastEpisode:
		return true
	}
	return false
}

// CandidateOption is one competing draft variant. Generator output that
// mixes plain strings and tagged variants is normalized into this shape
// at the boundary.
type CandidateOption struct {
	Text     string `json:"text"`
	VoiceTag string `json:"voice_tag,omitempty"`
}

// Payload carries kind-specific content fields.
type Payload struct {
	Text           string            `json:"text,omitempty"`
	Title          string            `json:"title,omitempty"`
	Caption        string            `json:"caption,omitempty"`
	Script         string            `json:"script,omitempty"`
	Options        []CandidateOption `json:"options,omitempty"`
	SourceMaterial string            `json:"source_material,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// QueueItem is a unit of content moving through the publish lifecycle.
type QueueItem struct {
	ID             string
	Platform       Platform
	Kind           ItemKind
	Payload        Payload
	State          ItemState
	SelectedOption *int
	AssetComplete  bool
	Format         *string
	TrialID        *string
	PostURL        *string
	LastError      *string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	PostedAt       *time.Time
}

// ResolvedOption returns the single option chosen for publication.
// An item with one option is implicitly resolved; an item with several
// requires an explicit selection. Returns false when no unambiguous
// choice exists.
func (i *QueueItem) ResolvedOption() (CandidateOption, bool) {
	switch {
	case len(i.Payload.Options) == 0:
		return CandidateOption{Text: i.Payload.Text}, i.Payload.Text != "" || i.Kind == ItemKindEngagement
	case len(i.Payload.Options) == 1:
		return i.Payload.Options[0], true
	case i.SelectedOption != nil && *i.SelectedOption >= 0 && *i.SelectedOption < len(i.Payload.Options):
		return i.Payload.Options[*i.SelectedOption], true
	}
	return CandidateOption{}, false
}

// PublishText returns the text that goes over the wire for this item.
func (i *QueueItem) PublishText() string {
	if opt, ok := i.ResolvedOption(); ok {
		return opt.Text
	}
	return i.Payload.Text
}

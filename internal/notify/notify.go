// Package notify turns a business event into the set of users to notify,
// following the notification edges of the active profile's graph.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alfredjeanlab/orggraph/internal/events"
	"github.com/alfredjeanlab/orggraph/internal/metrics"
	"github.com/alfredjeanlab/orggraph/internal/model"
	"github.com/alfredjeanlab/orggraph/internal/scope"
)

// ExtraordinaryFlag marks an entity as an extraordinary event; AUTO priority
// escalates to URGENT when it is set.
const ExtraordinaryFlag = "mimoradna_udalost"

// Trigger is one business event.
type Trigger struct {
	EventType     string       `json:"eventType" validate:"required"`
	Entity        model.Entity `json:"entity,omitempty"`
	TriggerUserID string       `json:"triggerUserId,omitempty"`
	ProfileID     string       `json:"profileId,omitempty"`
}

// Recipient is one aggregated notification target.
type Recipient struct {
	UserID     string                 `json:"userId"`
	Priority   model.Priority         `json:"priority"`
	Channels   model.DeliveryChannels `json:"channels"`
	EdgeIDs    []string               `json:"edgeIds"`
	TemplateID string                 `json:"templateId,omitempty"`
	SourceInfo bool                   `json:"sourceInfo,omitempty"`
}

// ResolvePriority applies the AUTO rule. An empty or unknown priority is
// WARNING.
func ResolvePriority(p model.Priority, entity model.Entity) model.Priority {
	switch p {
	case model.PriorityAuto:
		if entity.Flag(ExtraordinaryFlag) {
			return model.PriorityUrgent
		}
		return model.PriorityWarning
	case model.PriorityUrgent, model.PriorityWarning, model.PriorityInfo:
		return p
	}
	return model.PriorityWarning
}

// SelectEdges returns the edges that route eventType: those whose rule lists
// it, or when there are none, every outgoing edge of a template node that
// lists it.
func SelectEdges(g model.Graph, eventType string) []model.Edge {
	var out []model.Edge
	for _, e := range g.Edges {
		if e.Data.Notifications.HasEventType(eventType) {
			out = append(out, e)
		}
	}
	if len(out) > 0 {
		return out
	}
	templates := make(map[string]struct{})
	for _, n := range g.Nodes {
		if t := n.Template(); t != nil && t.HasEventType(eventType) {
			templates[n.ID] = struct{}{}
		}
	}
	for _, e := range g.Edges {
		if _, ok := templates[e.Source]; ok {
			out = append(out, e)
		}
	}
	return out
}

type aggregate struct {
	order []string
	byID  map[string]*Recipient
}

func (a *aggregate) add(userID string, p model.Priority, ch model.DeliveryChannels, edgeID, templateID string) {
	r, ok := a.byID[userID]
	if !ok {
		r = &Recipient{UserID: userID, Priority: p, Channels: ch, TemplateID: templateID}
		a.byID[userID] = r
		a.order = append(a.order, userID)
	} else {
		r.Channels = r.Channels.Merge(ch)
		if p.Rank() > r.Priority.Rank() {
			r.Priority = p
		}
		if r.TemplateID == "" {
			r.TemplateID = templateID
		}
	}
	r.EdgeIDs = appendUnique(r.EdgeIDs, edgeID)
}

// Resolve computes the recipients of t over g. Users reached along several
// edges appear once, with channels merged and the highest priority kept, in
// the order they were first reached. Source-info recipients follow at INFO
// priority, in-app only, unless already present.
func Resolve(g model.Graph, roster *model.Roster, t Trigger) []Recipient {
	nodes := make(map[string]model.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}
	reports := scope.DirectReports(g)
	agg := &aggregate{byID: make(map[string]*Recipient)}

	type sourceInfo struct {
		ids    []string
		edgeID string
	}
	var infos []sourceInfo

	for _, e := range SelectEdges(g, t.EventType) {
		src, okS := nodes[e.Source]
		dst, okT := nodes[e.Target]
		if !okS || !okT {
			continue
		}
		rule := e.Data.Notifications
		if rule == nil {
			rule = &model.NotificationRule{}
		}

		channels := gate(dst.Delivery(), rule.Channels)
		if !channels.Any() {
			continue
		}

		population := roster.MembersOf(src)
		if src.Kind == model.KindTemplate {
			population = roster.MembersOf(dst)
		}
		ids := scope.Resolve(scope.Request{
			Scope:         dst.Scope(),
			Owner:         dst,
			Roster:        roster,
			Population:    population,
			Entity:        t.Entity,
			TriggerUserID: t.TriggerUserID,
			Reports:       reports,
		})
		if rule.ScopeFilter == model.FilterEntityParticipants {
			ids = scope.Participants(t.Entity, ids, roster)
		}

		templateID := ""
		if tpl := src.Template(); tpl != nil {
			templateID = tpl.TemplateID
		}
		priority := ResolvePriority(rule.Priority, t.Entity)
		for _, id := range ids {
			agg.add(id, priority, channels, e.ID, templateID)
		}

		if rule.SourceInfo.IsEnabled() && t.Entity != nil {
			var sids []string
			for _, f := range rule.SourceInfo.FieldNames() {
				sids = append(sids, t.Entity.IDs(f)...)
			}
			infos = append(infos, sourceInfo{ids: sids, edgeID: e.ID})
		}
	}

	for _, si := range infos {
		for _, id := range si.ids {
			if _, present := agg.byID[id]; present || !roster.Contains(id) {
				continue
			}
			agg.add(id, model.PriorityInfo, model.DeliveryChannels{InApp: true}, si.edgeID, "")
			agg.byID[id].SourceInfo = true
		}
	}

	out := make([]Recipient, 0, len(agg.order))
	for _, id := range agg.order {
		out = append(out, *agg.byID[id])
	}
	return out
}

// gate applies the edge's channel switches to the recipient's delivery
// preferences. SMS is not switchable per edge.
func gate(d model.DeliveryChannels, ch *model.EdgeChannels) model.DeliveryChannels {
	if ch == nil {
		return d
	}
	return model.DeliveryChannels{Email: d.Email && ch.Email, InApp: d.InApp && ch.InApp, SMS: d.SMS}
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}

// Dispatcher resolves triggers and publishes one event per recipient.
type Dispatcher struct {
	pub events.Publisher
	log logrus.FieldLogger
	now func() time.Time
}

// NewDispatcher returns a dispatcher publishing through pub.
func NewDispatcher(pub events.Publisher, log logrus.FieldLogger) *Dispatcher {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{pub: pub, log: log.WithField("component", "notify"), now: time.Now}
}

// Dispatch resolves t and publishes the recipients. Publishing is best
// effort: failures are logged and do not fail the dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, g model.Graph, roster *model.Roster, t Trigger) []Recipient {
	recipients := Resolve(g, roster, t)
	at := d.now().UTC()
	for _, r := range recipients {
		metrics.NotificationsDispatched.WithLabelValues(string(r.Priority)).Inc()
		edgeID := ""
		if len(r.EdgeIDs) > 0 {
			edgeID = r.EdgeIDs[0]
		}
		err := d.pub.Publish(ctx, events.TopicNotificationDispatched, events.NotificationDispatched{
			ID:         uuid.NewString(),
			EventType:  t.EventType,
			ProfileID:  t.ProfileID,
			UserID:     r.UserID,
			Priority:   r.Priority,
			Channels:   r.Channels,
			EdgeID:     edgeID,
			TemplateID: r.TemplateID,
			SourceInfo: r.SourceInfo,
			At:         at,
		})
		if err != nil {
			d.log.WithError(err).WithField("user", r.UserID).Warn("publishing notification")
		}
	}
	d.log.WithFields(logrus.Fields{"event": t.EventType, "recipients": len(recipients)}).Info("event dispatched")
	return recipients
}

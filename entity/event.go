package entity

import (
	"fmt"
	"time"

	"github.com/klauspost/lctime"
	"golang.org/x/exp/slices"
)

type EventType string

const (
	EventTypeConferencia       EventType = "Conferencia"
	EventTypeCongreso          EventType = "Congreso"
	EventTypeConvocatoria      EventType = "Convocatoria"
	EventTypeForo              EventType = "Foro"
	EventTypeMock              EventType = "Mock"
	EventTypeNetworkingSession EventType = "Networking session"
	EventTypePanel             EventType = "Panel"
	EventTypeSemanaDeCarrera   EventType = "Semana de la carrera"
	EventTypeSeminario         EventType = "Seminario"
	EventTypeSimposio          EventType = "Simposio"
	EventTypeStudyJAM          EventType = "Study JAM"
	EventTypeTakeover          EventType = "Takeover"
	EventTypeTaller            EventType = "Taller"
	EventTypeVisitaAEmpresa    EventType = "Visita a empresa"
	EventTypeOtro              EventType = "Otro"
)

var EventTypes = []EventType{
	EventTypeConferencia,
	EventTypeCongreso,
	EventTypeConvocatoria,
	EventTypeForo,
	EventTypeMock,
	EventTypeNetworkingSession,
	EventTypePanel,
	EventTypeSemanaDeCarrera,
	EventTypeSeminario,
	EventTypeSimposio,
	EventTypeStudyJAM,
	EventTypeTakeover,
	EventTypeTaller,
	EventTypeVisitaAEmpresa,
	EventTypeOtro,
}

func (t EventType) IsValid() bool {
	return slices.Contains(EventTypes, t)
}

type Timestamp struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
}

// Registration is the snapshot of a user stored on the event at the moment
// they registered, so attendance lists survive later profile edits.
type Registration struct {
	UID          string    `bson:"uid" json:"uid"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	RegisteredAt time.Time `bson:"registeredAt" json:"registeredAt"`
}

type Event struct {
	EID              string                  `bson:"_id" json:"eid"`
	Title            string                  `bson:"title" json:"title"`
	Type             EventType               `bson:"type" json:"type"`
	Area             string                  `bson:"area" json:"area"`
	OrganizingGroups []string                `bson:"organizingGroups" json:"organizingGroups"`
	Timestamp        Timestamp               `bson:"timestamp" json:"timestamp"`
	Place            string                  `bson:"place,omitempty" json:"place,omitempty"`
	Description      string                  `bson:"description,omitempty" json:"description,omitempty"`
	LinkRegister     string                  `bson:"linkRegister,omitempty" json:"linkRegister,omitempty"`
	LinkEvent        string                  `bson:"linkEvent,omitempty" json:"linkEvent,omitempty"`
	ImgURL           string                  `bson:"imgUrl,omitempty" json:"imgUrl,omitempty"`
	FavoriteOf       []string                `bson:"favoriteOf,omitempty" json:"favoriteOf,omitempty"`
	Registered       map[string]Registration `bson:"registered,omitempty" json:"registered,omitempty"`
}

// EventSummary is the denormalized projection of an Event kept inside month
// bucket documents. It is never authored on its own: always derive it with
// Event.Summary.
type EventSummary struct {
	EID              string    `bson:"eid" json:"eid"`
	Title            string    `bson:"title" json:"title"`
	Type             EventType `bson:"type" json:"type"`
	Area             string    `bson:"area" json:"area"`
	OrganizingGroups []string  `bson:"organizingGroups" json:"organizingGroups"`
	Timestamp        Timestamp `bson:"timestamp" json:"timestamp"`
}

func (e *Event) Summary() EventSummary {
	return EventSummary{
		EID:              e.EID,
		Title:            e.Title,
		Type:             e.Type,
		Area:             e.Area,
		OrganizingGroups: slices.Clone(e.OrganizingGroups),
		Timestamp:        e.Timestamp,
	}
}

func (e *Event) Alias() string {
	err := lctime.SetLocale("es_MX")
	if err != nil {
		fmt.Println(err)
	}

	timeStr := lctime.Strftime("%A %d de %B", e.Timestamp.Start)

	return fmt.Sprintf("%s / %s", timeStr, e.Title)
}

// MonthBucket is the months/{YYYY-MM} document: every event whose window
// (plus margin) touches that month, keyed by eid.
type MonthBucket struct {
	ID     string                  `bson:"_id" json:"mid"`
	Events map[string]EventSummary `bson:"events" json:"events"`
}

// EventPatch carries the fields an update may change. Nil pointers (and a nil
// groups slice) leave the current value untouched. The eid is immutable.
type EventPatch struct {
	Title            *string    `json:"title,omitempty"`
	Type             *EventType `json:"type,omitempty"`
	Area             *string    `json:"area,omitempty"`
	OrganizingGroups []string   `json:"organizingGroups,omitempty"`
	Timestamp        *Timestamp `json:"timestamp,omitempty"`
	Place            *string    `json:"place,omitempty"`
	Description      *string    `json:"description,omitempty"`
	LinkRegister     *string    `json:"linkRegister,omitempty"`
	LinkEvent        *string    `json:"linkEvent,omitempty"`
	ImgURL           *string    `json:"imgUrl,omitempty"`
}

func (p *EventPatch) Apply(event Event) Event {
	if p.Title != nil {
		event.Title = *p.Title
	}
	if p.Type != nil {
		event.Type = *p.Type
	}
	if p.Area != nil {
		event.Area = *p.Area
	}
	if p.OrganizingGroups != nil {
		event.OrganizingGroups = slices.Clone(p.OrganizingGroups)
	}
	if p.Timestamp != nil {
		event.Timestamp = *p.Timestamp
	}
	if p.Place != nil {
		event.Place = *p.Place
	}
	if p.Description != nil {
		event.Description = *p.Description
	}
	if p.LinkRegister != nil {
		event.LinkRegister = *p.LinkRegister
	}
	if p.LinkEvent != nil {
		event.LinkEvent = *p.LinkEvent
	}
	if p.ImgURL != nil {
		event.ImgURL = *p.ImgURL
	}

	return event
}

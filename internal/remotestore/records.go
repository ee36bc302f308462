package remotestore

import (
	"fmt"
	"strconv"
	"time"
)

// Records are the wire shape of remote documents: flat string-keyed fields,
// timestamps as RFC3339Nano, enums as raw strings. Decoding validates
// required fields; a malformed document is a reported error, never a
// silently dropped record.

const timeLayout = time.RFC3339Nano

// DecodeError describes a remote document that failed validation.
type DecodeError struct {
	Kind  string
	ID    string
	Field string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("remote %s %s: invalid field %q", e.Kind, e.ID, e.Field)
}

type TripRecord struct {
	ID            string
	UserID        string
	Name          string
	StartDate     time.Time
	EndDate       time.Time
	CoverPhotoURL string
	IsPublic      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (r TripRecord) fields() map[string]any {
	return map[string]any{
		"userId":        r.UserID,
		"name":          r.Name,
		"startDate":     r.StartDate.UTC().Format(timeLayout),
		"endDate":       r.EndDate.UTC().Format(timeLayout),
		"coverPhotoURL": r.CoverPhotoURL,
		"isPublic":      strconv.FormatBool(r.IsPublic),
		"createdAt":     r.CreatedAt.UTC().Format(timeLayout),
		"updatedAt":     r.UpdatedAt.UTC().Format(timeLayout),
	}
}

func decodeTripRecord(id string, doc map[string]string) (TripRecord, error) {
	d := decoder{kind: "trip", id: id, doc: doc}
	rec := TripRecord{
		ID:            id,
		UserID:        d.requireString("userId"),
		Name:          d.requireString("name"),
		StartDate:     d.requireTime("startDate"),
		EndDate:       d.requireTime("endDate"),
		CoverPhotoURL: doc["coverPhotoURL"],
		IsPublic:      d.optionalBool("isPublic"),
		CreatedAt:     d.requireTime("createdAt"),
		UpdatedAt:     d.requireTime("updatedAt"),
	}
	return rec, d.err
}

type CheckpointRecord struct {
	ID                string
	UserID            string
	TripID            string
	Latitude          float64
	Longitude         float64
	Timestamp         time.Time
	Type              string
	Category          string
	PhotoAssetID      string
	PhotoURL          string
	PhotoThumbnailURL string
	Name              string
	Note              string
	Address           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (r CheckpointRecord) fields() map[string]any {
	return map[string]any{
		"userId":            r.UserID,
		"tripId":            r.TripID,
		"latitude":          strconv.FormatFloat(r.Latitude, 'f', -1, 64),
		"longitude":         strconv.FormatFloat(r.Longitude, 'f', -1, 64),
		"timestamp":         r.Timestamp.UTC().Format(timeLayout),
		"type":              r.Type,
		"category":          r.Category,
		"photoAssetID":      r.PhotoAssetID,
		"photoURL":          r.PhotoURL,
		"photoThumbnailURL": r.PhotoThumbnailURL,
		"name":              r.Name,
		"note":              r.Note,
		"address":           r.Address,
		"createdAt":         r.CreatedAt.UTC().Format(timeLayout),
		"updatedAt":         r.UpdatedAt.UTC().Format(timeLayout),
	}
}

func decodeCheckpointRecord(id string, doc map[string]string) (CheckpointRecord, error) {
	d := decoder{kind: "checkpoint", id: id, doc: doc}
	rec := CheckpointRecord{
		ID:                id,
		UserID:            d.requireString("userId"),
		TripID:            doc["tripId"],
		Latitude:          d.requireFloat("latitude"),
		Longitude:         d.requireFloat("longitude"),
		Timestamp:         d.requireTime("timestamp"),
		Type:              d.requireString("type"),
		Category:          doc["category"],
		PhotoAssetID:      doc["photoAssetID"],
		PhotoURL:          doc["photoURL"],
		PhotoThumbnailURL: doc["photoThumbnailURL"],
		Name:              doc["name"],
		Note:              doc["note"],
		Address:           doc["address"],
		CreatedAt:         d.optionalTime("createdAt"),
		UpdatedAt:         d.optionalTime("updatedAt"),
	}
	return rec, d.err
}

type ProfileRecord struct {
	UserID      string
	DisplayName string
	IsPremium   bool
}

func decodeProfileRecord(userID string, doc map[string]string) ProfileRecord {
	premium, _ := strconv.ParseBool(doc["isPremium"])
	return ProfileRecord{
		UserID:      userID,
		DisplayName: doc["displayName"],
		IsPremium:   premium,
	}
}

// decoder accumulates the first validation failure while reading fields.
type decoder struct {
	kind string
	id   string
	doc  map[string]string
	err  error
}

func (d *decoder) fail(field string) {
	if d.err == nil {
		d.err = &DecodeError{Kind: d.kind, ID: d.id, Field: field}
	}
}

func (d *decoder) requireString(field string) string {
	v, ok := d.doc[field]
	if !ok || v == "" {
		d.fail(field)
	}
	return v
}

func (d *decoder) requireTime(field string) time.Time {
	t, err := time.Parse(timeLayout, d.doc[field])
	if err != nil {
		d.fail(field)
	}
	return t
}

func (d *decoder) optionalTime(field string) time.Time {
	v, ok := d.doc[field]
	if !ok || v == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		d.fail(field)
	}
	return t
}

func (d *decoder) requireFloat(field string) float64 {
	f, err := strconv.ParseFloat(d.doc[field], 64)
	if err != nil {
		d.fail(field)
	}
	return f
}

func (d *decoder) optionalBool(field string) bool {
	v, ok := d.doc[field]
	if !ok || v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		d.fail(field)
	}
	return b
}

// Package plex decodes the webhook calls a Plex Media Server makes.
//
// Plex posts multipart/form-data with the event JSON in the "payload" field
// and, for some events, a poster image in the "thumb" file part.
package plex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const (
	EventLibraryNew = "library.new"

	PayloadField = "payload"
	ThumbField   = "thumb"
)

var (
	ErrMissingPayload = errors.New("missing payload field")
	ErrInvalidPayload = errors.New("invalid payload")
)

type Event struct {
	Event    string   `json:"event"`
	Metadata Metadata `json:"Metadata"`

	Thumbnail *Thumbnail `json:"-"`
}

type Metadata struct {
	Type                string `json:"type"`
	LibrarySectionTitle string `json:"librarySectionTitle"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
}

type Thumbnail struct {
	FieldName   string
	ContentType string
	Data        []byte
}

// IsLibraryNew reports whether the event announces a new library item.
func (e Event) IsLibraryNew() bool {
	return e.Event == EventLibraryNew
}

// ParseEvent decodes the JSON carried in the payload field.
func ParseEvent(payload string) (Event, error) {
	if strings.TrimSpace(payload) == "" {
		return Event{}, ErrMissingPayload
	}

	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return event, nil
}

// ParseRequest reads the event and the optional thumbnail from a webhook
// request. Multipart parts beyond maxMemory are spooled to disk by net/http.
func ParseRequest(r *http.Request, maxMemory int64) (Event, error) {
	err := r.ParseMultipartForm(maxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	event, err := ParseEvent(r.FormValue(PayloadField))
	if err != nil {
		return Event{}, err
	}

	if r.MultipartForm != nil {
		thumb, err := readThumbnail(r.MultipartForm)
		if err != nil {
			return Event{}, err
		}
		event.Thumbnail = thumb
	}
	return event, nil
}

func readThumbnail(form *multipart.Form) (*Thumbnail, error) {
	headers := form.File[ThumbField]
	if len(headers) == 0 {
		return nil, nil
	}

	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open thumbnail: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &Thumbnail{
		FieldName:   ThumbField,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

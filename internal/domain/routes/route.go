package routes

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"noe/internal/domain/user"
)

var (
	ErrInvalidRoute  = errors.New("routes: invalid route")
	ErrInvalidWindow = errors.New("routes: destination date before origin date")
)

type ID string

type Status string

const (
	StatusScheduled  Status = "agendada"
	StatusInProgress Status = "em andamento"
	StatusDone       Status = "concluída"
	StatusCancelled  Status = "cancelada"
)

// Stop is an intermediate point of a route.
type Stop struct {
	ID            string    `json:"id,omitempty"`
	Location      string    `json:"location" validate:"required"`
	ArrivalTime   time.Time `json:"arrivalTime"`
	DepartureTime time.Time `json:"departureTime"`
	Notes         string    `json:"notes,omitempty"`
}

// Route is a transporter's published trip.
type Route struct {
	ID                  ID         `json:"id"`
	Origin              string     `json:"origin"`
	OriginDate          time.Time  `json:"originDate"`
	Destination         string     `json:"destination"`
	DestinationDate     time.Time  `json:"destinationDate"`
	AvailableSlots      int        `json:"availableSlots"`
	SpeciesAccepted     string     `json:"speciesAccepted"`
	AnimalSizeAccepted  string     `json:"animalSizeAccepted"`
	VehicleObservations string     `json:"vehicleObservations,omitempty"`
	PriceDescription    string     `json:"priceDescription,omitempty"`
	Status              Status     `json:"status"`
	Stops               []Stop     `json:"stops,omitempty"`
	Transporter         *user.User `json:"transportador,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
}

// SearchFilter narrows the public route listing.
type SearchFilter struct {
	Origin      string
	Destination string
	Date        string
	Species     string
	Size        string
}

// Query encodes the filter the way the backend expects it. Empty fields are omitted.
func (f SearchFilter) Query() url.Values {
	q := url.Values{}
	add := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			q.Set(key, v)
		}
	}
	add("origin", f.Origin)
	add("destination", f.Destination)
	add("date", f.Date)
	add("species", f.Species)
	add("size", f.Size)
	return q
}

// RouteParams is the payload for creating or updating a route.
type RouteParams struct {
	Origin              string    `json:"origin" validate:"required"`
	OriginDate          time.Time `json:"originDate" validate:"required"`
	Destination         string    `json:"destination" validate:"required"`
	DestinationDate     time.Time `json:"destinationDate" validate:"required"`
	AvailableSlots      int       `json:"availableSlots" validate:"gte=1"`
	SpeciesAccepted     string    `json:"speciesAccepted" validate:"required"`
	AnimalSizeAccepted  string    `json:"animalSizeAccepted" validate:"required"`
	VehicleObservations string    `json:"vehicleObservations,omitempty"`
	PriceDescription    string    `json:"priceDescription,omitempty"`
	Stops               []Stop    `json:"stops,omitempty" validate:"dive"`
}

var validate = validator.New()

// Validate checks the params before they are submitted.
func (p RouteParams) Validate() error {
	if err := validate.Struct(p); err != nil {
		return errors.Join(ErrInvalidRoute, err)
	}
	if p.DestinationDate.Before(p.OriginDate) {
		return ErrInvalidWindow
	}
	return nil
}

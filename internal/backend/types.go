package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID accepts both JSON numbers and strings; the backend is not consistent about which it sends.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("backend: id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Category groups services (Facials, Massages, ...).
type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Service belongs to exactly one category.
type Service struct {
	ID         ID      `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Duration   int     `json:"duration"` // minutes
	CategoryID ID      `json:"categoryId"`
}

// Therapist can perform one or more services.
type Therapist struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	ServiceIDs []ID   `json:"serviceIds,omitempty"`
}

// Credentials are forwarded to the backend login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the account returned on login.
type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResult carries the backend bearer token and the signed-in user.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// BookingRequest is the confirmed wizard selection.
type BookingRequest struct {
	CategoryID  string `json:"categoryId"`
	ServiceID   string `json:"serviceId"`
	TherapistID string `json:"therapistId"`
	Timeslot    string `json:"timeslot"`
}

// BookingResult is the backend's acknowledgement of a booking.
type BookingResult struct {
	ID     ID     `json:"id"`
	Status string `json:"status"`
}

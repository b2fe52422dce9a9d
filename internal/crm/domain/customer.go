package domain

import "time"

// Customer shop customer record
type Customer struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Vehicles  []Vehicle `json:"vehicles,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Vehicle customer vehicle record
type Vehicle struct {
	ID           string `json:"_id"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
	VIN          string `json:"vin,omitempty"`
}
